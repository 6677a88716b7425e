package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/target"
)

// level selects the resolution of one optical flow measurement.
type level int

const (
	levelFull level = iota
	levelHalf
)

// levelTargets are the luminance inputs and flow output of a measurement level.
var levelTargets = [...]struct{ prev, cur, out target.ID }{
	levelFull: {target.LumaPrev, target.Luma, target.OptFlow},
	levelHalf: {target.LumaPrevHalf, target.LumaHalf, target.OptFlowHalf},
}

// estimator is the implementation of the Estimator interface.
type estimator struct {
	renderer renderer.Renderer
	pool     target.Pool
}

// Estimator maintains the luminance history of the active source and produces the per-pixel
// motion field consumed by composition and feedback.
type Estimator interface {
	// Analyze regenerates the luminance targets from the source. With optical flow enabled the
	// previous luminance is captured before the current one is overwritten, every frame; otherwise
	// luminance is only rebuilt when the pool requests it. A nil source clears luminance to black.
	//
	// Parameters:
	//   - s: the frame settings
	//   - src: the uploaded source texture, or nil when no source is active
	//
	// Returns:
	//   - error: an error if a pass fails or the targets are unavailable
	Analyze(s *Settings, src renderer.Texture) error

	// Estimate computes the raw motion field (synthetic, or optical when enabled, combined across
	// two resolutions in pyramidal mode), applies auto-gain and temporal smoothing against the
	// previous published field, and publishes the result.
	//
	// Parameters:
	//   - s: the frame settings
	//
	// Returns:
	//   - renderer.Texture: the published motion field, valid until the next Estimate
	//   - error: an error if a pass fails or the targets are unavailable
	Estimate(s *Settings) (renderer.Texture, error)
}

var _ Estimator = &estimator{}

// NewEstimator creates a motion field estimator over the targets of pool.
//
// Parameters:
//   - r: the renderer executing the passes
//   - pool: the render target pool
//
// Returns:
//   - Estimator: the estimator
func NewEstimator(r renderer.Renderer, pool target.Pool) Estimator {
	return &estimator{renderer: r, pool: pool}
}

func (e *estimator) Analyze(s *Settings, src renderer.Texture) error {
	if !e.pool.Valid() {
		return target.ErrTargetsUnavailable
	}
	luma := e.pool.Target(target.Luma)
	lumaPrev := e.pool.Target(target.LumaPrev)

	rebuild := e.pool.NeedsRebuild()
	if s.OpticalFlow {
		if err := e.renderer.RunPass(pass.Copy, lumaPrev, nil, luma); err != nil {
			return fmt.Errorf("capture previous luminance: %w", err)
		}
		rebuild = true
	}
	if !rebuild {
		return nil
	}

	if src == nil {
		if err := e.renderer.Clear(luma, common.V4(0, 0, 0, 1)); err != nil {
			return fmt.Errorf("clear luminance: %w", err)
		}
	} else if err := e.renderer.RunPass(pass.Luma, luma, s.withPass(0, 0), src); err != nil {
		return fmt.Errorf("luminance prepass: %w", err)
	}

	// A fresh history has no meaningful previous frame; seed it with the current one so the
	// first measurement reads zero motion.
	if s.OpticalFlow && e.pool.NeedsHistoryReset() {
		if err := e.renderer.RunPass(pass.Copy, lumaPrev, nil, luma); err != nil {
			return fmt.Errorf("seed previous luminance: %w", err)
		}
	}

	if s.OpticalFlow && s.Pyramidal {
		if err := e.renderer.RunPass(pass.Downsample, e.pool.Target(target.LumaPrevHalf), nil, lumaPrev); err != nil {
			return fmt.Errorf("downsample previous luminance: %w", err)
		}
		if err := e.renderer.RunPass(pass.Downsample, e.pool.Target(target.LumaHalf), nil, luma); err != nil {
			return fmt.Errorf("downsample luminance: %w", err)
		}
	}

	e.pool.MarkRebuilt()
	return nil
}

func (e *estimator) Estimate(s *Settings) (renderer.Texture, error) {
	pair := e.pool.Pair(target.Flow)
	if pair == nil {
		return nil, target.ErrTargetsUnavailable
	}

	raw, err := e.raw(s)
	if err != nil {
		return nil, err
	}

	// Priming publishes the raw field as is: after reallocation or a source change the previous
	// field is meaningless, and zero smoothing must reproduce raw exactly.
	prime := pass.Flag(e.pool.NeedsHistoryReset() || s.Smoothing <= 0)
	if err := e.renderer.RunPass(pass.FlowSmooth, pair.Write(), s.withPass(prime, 0), raw, pair.Read()); err != nil {
		return nil, fmt.Errorf("smooth motion field: %w", err)
	}
	pair.Swap()
	e.pool.MarkHistoryReset()
	return pair.Read(), nil
}

// raw returns the unsmoothed motion field of this frame.
func (e *estimator) raw(s *Settings) (renderer.Texture, error) {
	if !s.OpticalFlow {
		out := e.pool.Target(target.FlowSynth)
		if err := e.renderer.RunPass(pass.FlowSynth, out, s.withPass(0, 0), e.pool.Target(target.Luma)); err != nil {
			return nil, fmt.Errorf("synthetic motion field: %w", err)
		}
		return out, nil
	}

	fine, err := e.measure(s, levelFull)
	if err != nil {
		return nil, err
	}
	if !s.Pyramidal {
		return fine, nil
	}
	coarse, err := e.measure(s, levelHalf)
	if err != nil {
		return nil, err
	}
	out := e.pool.Target(target.FlowRaw)
	if err := e.renderer.RunPass(pass.FlowCombine, out, s.withPass(s.PyrLargeWeight, 0), fine, coarse); err != nil {
		return nil, fmt.Errorf("combine motion fields: %w", err)
	}
	return out, nil
}

// measure runs the optical flow program on the luminance history at one resolution.
func (e *estimator) measure(s *Settings, lv level) (renderer.Texture, error) {
	t := levelTargets[lv]
	out := e.pool.Target(t.out)
	if err := e.renderer.RunPass(pass.FlowOptical, out, s.withPass(0, 0), e.pool.Target(t.prev), e.pool.Target(t.cur)); err != nil {
		return nil, fmt.Errorf("optical flow level %d: %w", lv, err)
	}
	return out, nil
}
