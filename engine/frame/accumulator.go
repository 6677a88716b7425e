package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/target"
)

// accumulator is the implementation of the Accumulator interface.
type accumulator struct {
	renderer renderer.Renderer
	pool     target.Pool
}

// Accumulator blends each composed frame into the decayed, transformed history held by the
// accumulation pair of the pool.
type Accumulator interface {
	// Step writes this frame's accumulation and swaps the pair.
	//
	// When the pool requests a clear, both accumulation targets are cleared to black and the
	// current frame is written without history; blending resumes on the next frame. With feedback
	// disabled the current frame is copied through unchanged. Otherwise the feedback program
	// computes decay*transformed(read) + (1-decay)*current.
	//
	// Parameters:
	//   - s: the frame settings
	//   - current: the composed frame
	//   - motion: the published motion field
	//
	// Returns:
	//   - renderer.Texture: the accumulation written this frame
	//   - error: an error if a pass fails or the targets are unavailable
	Step(s *Settings, current, motion renderer.Texture) (renderer.Texture, error)
}

var _ Accumulator = &accumulator{}

// NewAccumulator creates a feedback accumulator over the accumulation pair of pool.
//
// Parameters:
//   - r: the renderer executing the passes
//   - pool: the render target pool
//
// Returns:
//   - Accumulator: the accumulator
func NewAccumulator(r renderer.Renderer, pool target.Pool) Accumulator {
	return &accumulator{renderer: r, pool: pool}
}

func (a *accumulator) Step(s *Settings, current, motion renderer.Texture) (renderer.Texture, error) {
	pair := a.pool.Pair(target.Accum)
	if pair == nil {
		return nil, target.ErrTargetsUnavailable
	}

	switch {
	case a.pool.NeedsClear():
		for _, t := range pair.Both() {
			if err := a.renderer.Clear(t, common.V4(0, 0, 0, 1)); err != nil {
				return nil, fmt.Errorf("clear accumulation: %w", err)
			}
		}
		if err := a.renderer.RunPass(pass.Copy, pair.Write(), nil, current); err != nil {
			return nil, fmt.Errorf("prime accumulation: %w", err)
		}
		a.pool.MarkCleared()
	case !s.Feedback:
		if err := a.renderer.RunPass(pass.Copy, pair.Write(), nil, current); err != nil {
			return nil, fmt.Errorf("feedback bypass: %w", err)
		}
	default:
		if err := a.renderer.RunPass(pass.Feedback, pair.Write(), s.withPass(0, 0), pair.Read(), current, motion); err != nil {
			return nil, fmt.Errorf("feedback blend: %w", err)
		}
	}

	pair.Swap()
	return pair.Read(), nil
}
