package target

import "github.com/Carmen-Shannon/kaleido-go/engine/renderer"

// Pair is two same-sized targets with alternating read and write roles. The roles are an index
// into a fixed array, so Read and Write never return the same target.
type Pair struct {
	targets [2]renderer.Texture
	active  int
}

// Read returns the target holding the previous result.
func (p *Pair) Read() renderer.Texture {
	return p.targets[p.active]
}

// Write returns the target receiving this frame's result.
func (p *Pair) Write() renderer.Texture {
	return p.targets[1-p.active]
}

// Swap inverts the roles.
func (p *Pair) Swap() {
	p.active = 1 - p.active
}

// Both returns the two targets in allocation order.
func (p *Pair) Both() [2]renderer.Texture {
	return p.targets
}

func (p *Pair) valid() bool {
	return p.targets[0] != nil && p.targets[1] != nil
}

func (p *Pair) release() {
	for i, t := range p.targets {
		if t != nil {
			t.Release()
		}
		p.targets[i] = nil
	}
	p.active = 0
}
