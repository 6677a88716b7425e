package frame

import (
	"fmt"

	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/pass"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer/target"
)

// bloom is the implementation of the Bloom interface.
type bloom struct {
	renderer renderer.Renderer
	pool     target.Pool
}

// Bloom is the stateless glow post-process: bright pass, separable blur, additive combine.
type Bloom interface {
	// Apply runs the bloom chain on scene and writes the result to the Final target.
	// When bloom is disabled scene is returned unchanged and no pass runs.
	//
	// Parameters:
	//   - s: the frame settings
	//   - scene: the accumulated frame
	//
	// Returns:
	//   - renderer.Texture: the bloomed frame, or scene when disabled
	//   - error: an error if a pass fails or the targets are unavailable
	Apply(s *Settings, scene renderer.Texture) (renderer.Texture, error)
}

var _ Bloom = &bloom{}

// NewBloom creates the bloom post-process over the scratch targets of pool.
//
// Parameters:
//   - r: the renderer executing the passes
//   - pool: the render target pool
//
// Returns:
//   - Bloom: the post-process
func NewBloom(r renderer.Renderer, pool target.Pool) Bloom {
	return &bloom{renderer: r, pool: pool}
}

func (b *bloom) Apply(s *Settings, scene renderer.Texture) (renderer.Texture, error) {
	if !s.Bloom {
		return scene, nil
	}
	if !b.pool.Valid() {
		return nil, target.ErrTargetsUnavailable
	}
	bright := b.pool.Target(target.Bright)
	blurH := b.pool.Target(target.BlurH)
	blurV := b.pool.Target(target.BlurV)
	final := b.pool.Target(target.Final)

	steps := []struct {
		name    string
		program string
		out     renderer.Texture
		u       *pass.Uniforms
		inputs  []renderer.Texture
	}{
		{"threshold", pass.BloomThreshold, bright, s.withPass(0, 0), []renderer.Texture{scene}},
		{"horizontal blur", pass.Blur, blurH, s.withPass(1, 0), []renderer.Texture{bright}},
		{"vertical blur", pass.Blur, blurV, s.withPass(0, 1), []renderer.Texture{blurH}},
		{"combine", pass.BloomCombine, final, s.withPass(0, 0), []renderer.Texture{scene, blurV}},
	}
	for _, st := range steps {
		if err := b.renderer.RunPass(st.program, st.out, st.u, st.inputs...); err != nil {
			return nil, fmt.Errorf("bloom %s: %w", st.name, err)
		}
	}
	return final, nil
}
