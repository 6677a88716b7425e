// Package frame runs the per-frame pipeline: luminance prepass, motion field estimation,
// scene composition, feedback accumulation, bloom and present, over the targets of a
// target.Pool and the programs of a renderer.Renderer.
package frame

import (
	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
)

// Settings is the frame-local view of one parameter snapshot. It is built once at the start of a
// frame and every stage of that frame reads the same value.
type Settings struct {
	// Snapshot is the parameter snapshot the settings were derived from.
	Snapshot params.Snapshot

	// Uniforms is the base uniform block. Stages copy it and set the per-pass arguments.
	Uniforms pass.Uniforms

	// OpticalFlow selects measured optical flow over the synthetic motion field.
	OpticalFlow bool

	// Pyramidal combines a half-resolution measurement with the full-resolution one.
	Pyramidal bool

	// PyrLargeWeight is the weight of the half-resolution field, 0 keeps only the fine field.
	PyrLargeWeight float32

	// Smoothing is the EMA weight of the previous published motion field.
	Smoothing float32

	// Feedback enables blending into the accumulated history.
	Feedback bool

	// Bloom enables the bloom stage.
	Bloom bool
}

// NewSettings derives the frame settings from a parameter snapshot.
//
// Parameters:
//   - snap: the parameter snapshot for this frame
//   - width: the output width in pixels
//   - height: the output height in pixels
//   - seconds: the transport time
//   - beat: the transport beat position
//
// Returns:
//   - Settings: the frame settings, with no source bound
func NewSettings(snap params.Snapshot, width, height int, seconds, beat float64) Settings {
	f := snap.Float32
	b := func(id string) float32 { return pass.Flag(snap.Bool(id)) }

	aspect := float32(1)
	if width > 0 && height > 0 {
		aspect = float32(width) / float32(height)
	}

	u := pass.Uniforms{
		OutWidth:  float32(width),
		OutHeight: float32(height),
		Time:      float32(seconds),
		Beat:      float32(beat),
		Aspect:    aspect,

		SourceScaleX: 1,
		SourceScaleY: 1,

		EnableKaleido: b(params.EnableKaleido),
		Segments:      float32(snap.Int(params.Segments)),
		Rotate:        f(params.Rotate),
		Zoom:          f(params.Zoom),
		KInner:        f(params.KInner),
		KOuter:        f(params.KOuter),
		EnableTile:    b(params.EnableTile),
		TileMirror:    b(params.TileMirror),
		TileX:         f(params.TileX),
		TileY:         f(params.TileY),

		EnableWarp:       b(params.EnableWarp),
		Warp:             f(params.Warp),
		Flow:             f(params.Flow),
		EnableColor:      b(params.EnableColor),
		ColorSpeed:       f(params.ColorSpeed),
		TexMix:           f(params.TexMix),
		EnableChromaFlow: b(params.EnableChromaFlow),
		ChromaAmt:        f(params.ChromaAmt),

		FlowMix:       f(params.FlowMix),
		CurlScale:     f(params.CurlScale),
		CurlSpeed:     f(params.CurlSpeed),
		OptFlowScale:  f(params.OptFlowScale),
		OptFlowRadius: float32(snap.Int(params.OptFlowRadius)),
		AutoGain:      b(params.EnableAutoGain),

		AdvectStrength: f(params.AdvectStrength),
		EnableAdvect:   b(params.EnableFlowAdvect),
		Decay:          f(params.Decay),
		ZoomRate:       f(params.ZoomRate),
		RotateRate:     f(params.RotateRate),
		EnablePolar:    b(params.EnablePolarFeedback),
		PolarScale:     f(params.PolarScale),
		PolarTwist:     f(params.PolarTwist),
		EchoTaps:       float32(snap.Int(params.EchoTaps)),
		EchoMix:        f(params.EchoMix),
		EchoAngle:      f(params.EchoAngle),
		Smoothing:      f(params.FlowSmoothing),

		BloomThreshold: f(params.BloomThreshold),
		BloomIntensity: f(params.BloomIntensity),
		BloomRadius:    f(params.BloomRadius),
		EnableFeedback: b(params.EnableFeedback),
	}

	return Settings{
		Snapshot:       snap,
		Uniforms:       u,
		OpticalFlow:    snap.Bool(params.EnableOpticalFlow),
		Pyramidal:      snap.Bool(params.EnablePyramidalFlow),
		PyrLargeWeight: f(params.PyrLargeWeight),
		Smoothing:      f(params.FlowSmoothing),
		Feedback:       snap.Bool(params.EnableFeedback),
		Bloom:          snap.Bool(params.EnableBloom),
	}
}

// BindSource marks a source of the given intrinsic size as active and sets the fit scale that
// maps output UV onto it.
//
// Parameters:
//   - srcW: the source width in pixels
//   - srcH: the source height in pixels
//   - fit: how the source is fitted to the output
func (s *Settings) BindSource(srcW, srcH int, fit common.FitMode) {
	scale := common.FitScale(srcW, srcH, int(s.Uniforms.OutWidth), int(s.Uniforms.OutHeight), fit)
	s.Uniforms.SourceActive = 1
	s.Uniforms.SourceScaleX = scale.X
	s.Uniforms.SourceScaleY = scale.Y
}

// withPass returns a copy of the base uniforms with the per-pass arguments set.
func (s *Settings) withPass(a, b float32) *pass.Uniforms {
	u := s.Uniforms.WithPass(a, b, 0, 0)
	return &u
}
