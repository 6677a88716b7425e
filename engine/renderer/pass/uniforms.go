package pass

import (
	"unsafe"

	"github.com/Carmen-Shannon/kaleido-go/common"
)

// Uniforms is the uniform block shared by every pass program. It mirrors the WGSL PassUniforms
// struct field for field: 52 float32 values, flags encoded as 0 or 1.
//
// OutWidth and OutHeight are filled in by the renderer for each pass. PassA..PassD carry
// per-pass arguments whose meaning depends on the program (blur direction, combine weight,
// smoothing prime flag).
type Uniforms struct {
	OutWidth, OutHeight, Time, Beat float32

	PassA, PassB, PassC, PassD float32

	SourceActive, SourceScaleX, SourceScaleY, Aspect float32

	EnableKaleido, Segments, Rotate, Zoom float32
	KInner, KOuter, EnableTile, TileMirror float32
	TileX, TileY, EnableWarp, Warp float32
	Flow, EnableColor, ColorSpeed, TexMix float32
	EnableChromaFlow, ChromaAmt, FlowMix, CurlScale float32

	CurlSpeed, OptFlowScale, OptFlowRadius, AutoGain float32

	AdvectStrength, EnableAdvect, Decay, ZoomRate float32
	RotateRate, EnablePolar, PolarScale, PolarTwist float32
	EchoTaps, EchoMix, EchoAngle, Smoothing float32

	BloomThreshold, BloomIntensity, BloomRadius, EnableFeedback float32
}

// UniformsSize is the byte size of Uniforms and of the WGSL PassUniforms block.
const UniformsSize = uint64(unsafe.Sizeof(Uniforms{}))

// Bytes returns a byte view of u for buffer uploads. The view aliases u.
func (u *Uniforms) Bytes() []byte {
	return common.StructToBytes(u)
}

// WithPass returns a copy of u with the per-pass arguments replaced.
func (u Uniforms) WithPass(a, b, c, d float32) Uniforms {
	u.PassA, u.PassB, u.PassC, u.PassD = a, b, c, d
	return u
}

// Flag encodes a boolean for the uniform block.
func Flag(v bool) float32 {
	if v {
		return 1
	}
	return 0
}

func on(v float32) bool {
	return v > 0.5
}
