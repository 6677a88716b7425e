package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeTime struct {
	t time.Time
}

func (f *fakeTime) now() time.Time { return f.t }

func (f *fakeTime) advance(d time.Duration) { f.t = f.t.Add(d) }

func TestClockAdvancesWhilePlaying(t *testing.T) {
	ft := &fakeTime{t: time.Unix(100, 0)}
	c := NewClock(WithNow(ft.now))

	ft.advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, c.Seconds(), 1e-9)
	assert.InDelta(t, 3.0, c.Beat(120), 1e-9)
}

func TestClockFreezesWhilePaused(t *testing.T) {
	ft := &fakeTime{t: time.Unix(100, 0)}
	c := NewClock(WithNow(ft.now))

	ft.advance(time.Second)
	c.Pause()
	ft.advance(10 * time.Second)
	assert.InDelta(t, 1.0, c.Seconds(), 1e-9)
	assert.False(t, c.Playing())

	assert.True(t, c.Toggle())
	ft.advance(2 * time.Second)
	assert.InDelta(t, 3.0, c.Seconds(), 1e-9)

	c.Play()
	assert.InDelta(t, 3.0, c.Seconds(), 1e-9)
}

func TestClockReset(t *testing.T) {
	ft := &fakeTime{t: time.Unix(0, 0)}
	c := NewClock(WithNow(ft.now), WithPaused())
	assert.Zero(t, c.Seconds())

	c.Play()
	ft.advance(4 * time.Second)
	c.Reset()
	assert.Zero(t, c.Seconds())
	assert.True(t, c.Playing())

	ft.advance(time.Second)
	assert.InDelta(t, 1.0, c.Seconds(), 1e-9)
}
