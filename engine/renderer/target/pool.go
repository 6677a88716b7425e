package target

import (
	"fmt"
	"log"
	"sync"

	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
)

// pool is the implementation of the Pool interface.
type pool struct {
	mu    *sync.Mutex
	alloc Allocator

	width  int
	height int
	valid  bool

	targets [numTargets]renderer.Texture
	pairs   [numPairs]Pair

	needsClear   bool
	needsRebuild bool
	needsHistory bool
}

// Pool owns every render target of the frame pipeline. All targets are created together by
// Resize and destroyed together on the next size change or Release.
type Pool interface {
	// Resize reallocates the full target set when the size differs from the current allocation.
	// A same-size call on a valid pool is a no-op that keeps all contents. Reallocation sets
	// the needs-clear, needs-rebuild and history-reset flags. On allocation failure every target is released
	// and the pool stays invalid until a later Resize succeeds.
	//
	// Parameters:
	//   - width: the output width in pixels
	//   - height: the output height in pixels
	//
	// Returns:
	//   - bool: true if targets were reallocated
	//   - error: ErrInvalidSize for non-positive dimensions, or the allocation error
	Resize(width, height int) (bool, error)

	// Valid reports whether a full target set is allocated.
	Valid() bool

	// Size returns the full-resolution size, zero when invalid.
	Size() (int, int)

	// Target returns a single target, or nil when the pool is invalid.
	//
	// Parameters:
	//   - id: the target
	//
	// Returns:
	//   - renderer.Texture: the target
	Target(id ID) renderer.Texture

	// Pair returns a ping-pong pair, or nil when the pool is invalid.
	//
	// Parameters:
	//   - id: the pair
	//
	// Returns:
	//   - *Pair: the pair
	Pair(id PairID) *Pair

	// NeedsClear reports whether accumulation state must be cleared before the next blend.
	NeedsClear() bool

	// NeedsRebuild reports whether luminance analysis must be regenerated.
	NeedsRebuild() bool

	// RequestClear sets the needs-clear flag without reallocating.
	RequestClear()

	// RequestRebuild sets the needs-rebuild flag.
	RequestRebuild()

	// MarkCleared resets the needs-clear flag.
	MarkCleared()

	// NeedsHistoryReset reports whether the motion history (previous luminance and published
	// motion field) is invalid and must be restarted from the current frame. It is independent
	// of NeedsClear so a feedback reset leaves motion smoothing intact.
	NeedsHistoryReset() bool

	// RequestHistoryReset invalidates the motion history, as after a source change.
	RequestHistoryReset()

	// MarkHistoryReset resets the history-reset flag.
	MarkHistoryReset()

	// MarkRebuilt resets the needs-rebuild flag.
	MarkRebuilt()

	// Release destroys every target and invalidates the pool.
	Release()
}

var _ Pool = &pool{}

// NewPool creates an empty pool. No target exists until the first successful Resize.
//
// Parameters:
//   - alloc: the target allocator, typically the Renderer
//
// Returns:
//   - Pool: the pool
func NewPool(alloc Allocator) Pool {
	return &pool{
		mu:    &sync.Mutex{},
		alloc: alloc,
	}
}

func (p *pool) Resize(width, height int) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if width <= 0 || height <= 0 {
		return false, fmt.Errorf("resize to %dx%d: %w", width, height, ErrInvalidSize)
	}
	if p.valid && p.width == width && p.height == height {
		return false, nil
	}

	var targets [numTargets]renderer.Texture
	var pairs [numPairs]Pair
	if err := p.allocate(width, height, &targets, &pairs); err != nil {
		releaseAll(&targets, &pairs)
		releaseAll(&p.targets, &p.pairs)
		p.valid = false
		p.width, p.height = 0, 0
		log.Printf("[Pool] allocation at %dx%d failed, skipping frames until the next resize: %v", width, height, err)
		return false, fmt.Errorf("resize to %dx%d: %w", width, height, err)
	}

	releaseAll(&p.targets, &p.pairs)
	p.targets = targets
	p.pairs = pairs
	p.width, p.height = width, height
	p.valid = true
	p.needsClear = true
	p.needsRebuild = true
	p.needsHistory = true

	hw, hh := HalfSize(width, height)
	log.Printf("[Pool] allocated targets at %dx%d (half %dx%d)", width, height, hw, hh)
	return true, nil
}

func (p *pool) allocate(width, height int, targets *[numTargets]renderer.Texture, pairs *[numPairs]Pair) error {
	hw, hh := HalfSize(width, height)
	for id := ID(0); id < numTargets; id++ {
		w, h := width, height
		if id.HalfRes() {
			w, h = hw, hh
		}
		t, err := p.alloc.CreateTexture(id.String(), w, h)
		if err != nil {
			return fmt.Errorf("allocate %s: %w", id, err)
		}
		targets[id] = t
	}
	for id := PairID(0); id < numPairs; id++ {
		for i := range pairs[id].targets {
			t, err := p.alloc.CreateTexture(fmt.Sprintf("%s_%c", id, 'a'+i), width, height)
			if err != nil {
				return fmt.Errorf("allocate %s: %w", id, err)
			}
			pairs[id].targets[i] = t
		}
	}
	return nil
}

func releaseAll(targets *[numTargets]renderer.Texture, pairs *[numPairs]Pair) {
	for i, t := range targets {
		if t != nil {
			t.Release()
		}
		targets[i] = nil
	}
	for i := range pairs {
		pairs[i].release()
	}
}

func (p *pool) Valid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.valid
}

func (p *pool) Size() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *pool) Target(id ID) renderer.Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid || id < 0 || id >= numTargets {
		return nil
	}
	return p.targets[id]
}

func (p *pool) Pair(id PairID) *Pair {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.valid || id < 0 || id >= numPairs || !p.pairs[id].valid() {
		return nil
	}
	return &p.pairs[id]
}

func (p *pool) NeedsClear() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needsClear
}

func (p *pool) NeedsRebuild() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needsRebuild
}

func (p *pool) RequestClear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsClear = true
}

func (p *pool) RequestRebuild() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsRebuild = true
}

func (p *pool) MarkCleared() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsClear = false
}

func (p *pool) MarkRebuilt() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsRebuild = false
}

func (p *pool) NeedsHistoryReset() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needsHistory
}

func (p *pool) RequestHistoryReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsHistory = true
}

func (p *pool) MarkHistoryReset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsHistory = false
}

func (p *pool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()
	releaseAll(&p.targets, &p.pairs)
	p.valid = false
	p.width, p.height = 0, 0
}
