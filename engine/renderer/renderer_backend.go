package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/shader"
)

// RendererBackendType identifies the backend implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based rendering backend.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the CPU backend which runs each pass program's Go kernel.
	// It needs no window or GPU and is used for headless rendering and tests.
	BackendTypeSoftware
)

// String returns the backend name used in logs and configuration.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota

	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

var (
	// ErrForeignTexture is returned when a texture created by another backend is passed in.
	ErrForeignTexture = errors.New("texture does not belong to this backend")

	// ErrReleasedTexture is returned when a released texture is used.
	ErrReleasedTexture = errors.New("texture has been released")

	// ErrInvalidTextureSize is returned when a texture is requested with a non-positive dimension.
	ErrInvalidTextureSize = errors.New("texture dimensions must be positive")
)

// Texture is a backend-owned 2D RGBA color buffer which pass programs render into and sample from.
type Texture interface {
	// Label returns the debug label the texture was created with.
	Label() string

	// Width returns the texture width in pixels.
	Width() int

	// Height returns the texture height in pixels.
	Height() int

	// Release frees the backend resources. Released textures must not be used again.
	Release()
}

// RendererBackend is the backend interface the Renderer drives. Every pass is a fullscreen
// draw of one registered program into one output texture.
type RendererBackend interface {
	// CreateTexture allocates a render target usable both as a pass output and as a pass input.
	//
	// Parameters:
	//   - label: a debug label
	//   - width: the width in pixels, must be positive
	//   - height: the height in pixels, must be positive
	//
	// Returns:
	//   - Texture: the new texture, cleared to transparent black
	//   - error: an error if the size is invalid or allocation fails
	CreateTexture(label string, width, height int) (Texture, error)

	// RegisterProgram prepares a pass program for execution.
	//
	// Parameters:
	//   - p: the program
	//   - s: the program's parsed shader
	//
	// Returns:
	//   - error: an error if the backend cannot build the program
	RegisterProgram(p pass.Program, s shader.Shader) error

	// RunPass executes a registered program over every texel of out.
	//
	// Parameters:
	//   - program: the program name
	//   - out: the output texture, which must not also appear in inputs
	//   - inputs: the input textures by slot
	//   - u: the pass uniforms
	//
	// Returns:
	//   - error: an error if the program is unknown or a texture is invalid
	RunPass(program string, out Texture, inputs []Texture, u *pass.Uniforms) error

	// Clear fills a texture with a constant color.
	//
	// Parameters:
	//   - t: the texture to clear
	//   - c: the RGBA color
	//
	// Returns:
	//   - error: an error if the texture is invalid
	Clear(t Texture, c common.Vec4) error

	// UploadSource uploads an RGBA8 source frame. prev is reused when its size matches the frame
	// and released otherwise.
	//
	// Parameters:
	//   - prev: the previously uploaded source texture, or nil
	//   - data: the frame pixels
	//
	// Returns:
	//   - Texture: the texture holding the frame
	//   - error: an error if the frame is malformed or the upload fails
	UploadSource(prev Texture, data *common.TextureStagingData) (Texture, error)

	// Present draws a texture onto the display surface, clamped to [0, 1].
	//
	// Parameters:
	//   - t: the texture to present
	//
	// Returns:
	//   - error: an error if the surface texture cannot be acquired
	Present(t Texture) error

	// ReadPixels reads a texture back as float32 RGBA, row-major with the top row first.
	//
	// Parameters:
	//   - t: the texture to read
	//
	// Returns:
	//   - []float32: width*height*4 values
	//   - error: an error if the readback fails
	ReadPixels(t Texture) ([]float32, error)

	// ConfigureSurface reconfigures the display surface for a new size.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SetPresentMode sets the surface present mode. A call to ConfigureSurface is required for
	// the new mode to take effect.
	//
	// Parameters:
	//   - mode: the PresentMode to use
	SetPresentMode(mode PresentMode)

	// Release frees every backend resource.
	Release()
}
