package target

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTexture struct {
	label    string
	w, h     int
	released bool
}

func (f *fakeTexture) Label() string { return f.label }
func (f *fakeTexture) Width() int    { return f.w }
func (f *fakeTexture) Height() int   { return f.h }
func (f *fakeTexture) Release()      { f.released = true }

type fakeAllocator struct {
	created []*fakeTexture
	failAt  int // fail the n-th allocation (1-based), 0 never fails
}

func (a *fakeAllocator) CreateTexture(label string, w, h int) (renderer.Texture, error) {
	if a.failAt > 0 && len(a.created)+1 == a.failAt {
		a.failAt = 0
		return nil, errors.New("out of memory")
	}
	t := &fakeTexture{label: label, w: w, h: h}
	a.created = append(a.created, t)
	return t, nil
}

func (a *fakeAllocator) live() int {
	n := 0
	for _, t := range a.created {
		if !t.released {
			n++
		}
	}
	return n
}

const setSize = int(numTargets) + 2*int(numPairs)

func TestResizeAllocatesFullSet(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewPool(alloc)
	assert.False(t, p.Valid())
	assert.Nil(t, p.Target(Compose))
	assert.Nil(t, p.Pair(Accum))

	changed, err := p.Resize(1280, 721)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, p.Valid())
	assert.Equal(t, setSize, alloc.live())
	assert.True(t, p.NeedsClear())
	assert.True(t, p.NeedsRebuild())

	for id := ID(0); id < numTargets; id++ {
		tex := p.Target(id)
		require.NotNil(t, tex, id.String())
		if id.HalfRes() {
			assert.Equal(t, 640, tex.Width(), id.String())
			assert.Equal(t, 360, tex.Height(), id.String())
		} else {
			assert.Equal(t, 1280, tex.Width(), id.String())
			assert.Equal(t, 721, tex.Height(), id.String())
		}
	}
	for _, id := range []PairID{Accum, Flow} {
		pair := p.Pair(id)
		require.NotNil(t, pair)
		assert.NotSame(t, pair.Read(), pair.Write())
		assert.Equal(t, 1280, pair.Read().Width())
	}
}

func TestResizeIsIdempotent(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewPool(alloc)
	_, err := p.Resize(64, 32)
	require.NoError(t, err)
	p.MarkCleared()
	p.MarkRebuilt()
	before := p.Target(Compose)

	changed, err := p.Resize(64, 32)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Same(t, before, p.Target(Compose))
	assert.Len(t, alloc.created, setSize)
	assert.False(t, p.NeedsClear())
	assert.False(t, p.NeedsRebuild())
}

func TestResizeToNewSizeReplacesTargets(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewPool(alloc)
	_, err := p.Resize(64, 32)
	require.NoError(t, err)
	p.MarkCleared()
	old := p.Target(Final).(*fakeTexture)

	changed, err := p.Resize(32, 64)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, old.released)
	assert.Equal(t, setSize, alloc.live())
	assert.True(t, p.NeedsClear())
	w, h := p.Size()
	assert.Equal(t, 32, w)
	assert.Equal(t, 64, h)
}

func TestResizeRejectsInvalidSize(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewPool(alloc)
	_, err := p.Resize(16, 16)
	require.NoError(t, err)

	for _, size := range [][2]int{{0, 16}, {16, 0}, {-4, -4}} {
		changed, err := p.Resize(size[0], size[1])
		assert.ErrorIs(t, err, ErrInvalidSize)
		assert.False(t, changed)
	}
	// The previous allocation survives a rejected size.
	assert.True(t, p.Valid())
	assert.Len(t, alloc.created, setSize)
}

func TestResizeFailureInvalidatesUntilNextResize(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewPool(alloc)
	_, err := p.Resize(16, 16)
	require.NoError(t, err)

	alloc.failAt = setSize + 5
	changed, err := p.Resize(32, 32)
	assert.Error(t, err)
	assert.False(t, changed)
	assert.False(t, p.Valid())
	assert.Nil(t, p.Target(Compose))
	assert.Zero(t, alloc.live(), "partial and previous targets are released")

	changed, err = p.Resize(32, 32)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, p.Valid())
	assert.Equal(t, setSize, alloc.live())
}

func TestHistoryResetIndependentOfClear(t *testing.T) {
	p := NewPool(&fakeAllocator{})
	_, err := p.Resize(8, 8)
	require.NoError(t, err)
	assert.True(t, p.NeedsHistoryReset())
	p.MarkCleared()
	p.MarkHistoryReset()

	p.RequestClear()
	assert.True(t, p.NeedsClear())
	assert.False(t, p.NeedsHistoryReset())

	p.RequestHistoryReset()
	p.MarkCleared()
	assert.True(t, p.NeedsHistoryReset())
	p.MarkHistoryReset()

	_, err = p.Resize(8, 8)
	require.NoError(t, err)
	assert.False(t, p.NeedsHistoryReset(), "same size keeps the history")
	_, err = p.Resize(16, 8)
	require.NoError(t, err)
	assert.True(t, p.NeedsHistoryReset())
}

func TestPairSwap(t *testing.T) {
	p := NewPool(&fakeAllocator{})
	_, err := p.Resize(8, 8)
	require.NoError(t, err)

	pair := p.Pair(Accum)
	r, w := pair.Read(), pair.Write()
	pair.Swap()
	assert.Same(t, w, pair.Read())
	assert.Same(t, r, pair.Write())
	pair.Swap()
	assert.Same(t, r, pair.Read())
}

func TestHalfSizeMinimumOne(t *testing.T) {
	w, h := HalfSize(1, 3)
	assert.Equal(t, 1, w)
	assert.Equal(t, 1, h)
}

func TestReleaseInvalidates(t *testing.T) {
	alloc := &fakeAllocator{}
	p := NewPool(alloc)
	_, err := p.Resize(8, 8)
	require.NoError(t, err)
	p.Release()
	assert.False(t, p.Valid())
	assert.Zero(t, alloc.live())
}
