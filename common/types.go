// package common contains common types that are used throughout this engine. They are not interface-wrapped structs, just plain structs that express
// commonly used data-types.
package common

import (
	"fmt"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds RGBA pixel data for a source image pending GPU upload.
// The renderer backends consume it when the active source delivers a new frame.
type TextureStagingData struct {
	// Pixels is the byte slice representing the actual pixel data for the texture. It should be in RGBA format, with 4 bytes per pixel.
	Pixels []byte
	// Width is the width of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Width uint32
	// Height is the height of the texture in pixels. This is required to correctly create the GPU texture and interpret the pixel data.
	Height uint32
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Every pass program samples its inputs through one sampler built from this description.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// LinearClampSampler is the sampler description shared by every pass: bilinear filtering with
// clamp-to-edge addressing, so samples outside [0, 1] repeat the border texel.
var LinearClampSampler = SamplerStagingData{
	AddressModeU:  wgpu.AddressModeClampToEdge,
	AddressModeV:  wgpu.AddressModeClampToEdge,
	AddressModeW:  wgpu.AddressModeClampToEdge,
	MagFilter:     wgpu.FilterModeLinear,
	MinFilter:     wgpu.FilterModeLinear,
	MipmapFilter:  wgpu.MipmapFilterModeNearest,
	LodMinClamp:   0,
	LodMaxClamp:   32,
	MaxAnisotropy: 1,
}

// FitMode describes how a source image is mapped onto the output surface.
type FitMode int

const (
	// FitCover fills the output, cropping the source on the overflowing axis.
	FitCover FitMode = iota
	// FitContain shows the whole source, leaving black bars on the short axis.
	FitContain
	// FitStretch maps the source onto the output ignoring aspect ratio.
	FitStretch
)

// String returns the lower-case name used in configuration files.
func (f FitMode) String() string {
	switch f {
	case FitCover:
		return "cover"
	case FitContain:
		return "contain"
	case FitStretch:
		return "stretch"
	default:
		return fmt.Sprintf("FitMode(%d)", int(f))
	}
}

// ParseFitMode parses a fit mode name as written by String.
//
// Parameters:
//   - s: the fit mode name (cover, contain or stretch), case-insensitive
//
// Returns:
//   - FitMode: the parsed mode
//   - error: an error if the name is not recognised
func ParseFitMode(s string) (FitMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cover":
		return FitCover, nil
	case "contain":
		return FitContain, nil
	case "stretch":
		return FitStretch, nil
	}
	return FitCover, fmt.Errorf("unknown fit mode %q", s)
}

// FitScale returns the per-axis scale that maps output UV space onto source UV space around the
// image centre: sourceUV = (uv - 0.5) * scale + 0.5.
// Scale components below 1 crop the source (cover), above 1 reveal bars (contain).
// Degenerate dimensions yield an identity scale.
//
// Parameters:
//   - srcW, srcH: the intrinsic source dimensions in pixels
//   - dstW, dstH: the output dimensions in pixels
//   - mode: the fit mode
//
// Returns:
//   - Vec2: the UV scale for the x and y axes
func FitScale(srcW, srcH, dstW, dstH int, mode FitMode) Vec2 {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 || mode == FitStretch {
		return Vec2{1, 1}
	}
	srcAspect := float32(srcW) / float32(srcH)
	dstAspect := float32(dstW) / float32(dstH)
	ratio := dstAspect / srcAspect
	switch mode {
	case FitContain:
		if ratio > 1 {
			return Vec2{ratio, 1}
		}
		return Vec2{1, 1 / ratio}
	default:
		if ratio > 1 {
			return Vec2{1, 1 / ratio}
		}
		return Vec2{ratio, 1}
	}
}
