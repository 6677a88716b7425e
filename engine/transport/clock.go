package transport

import (
	"sync"
	"time"
)

// clock is the unexported implementation of Clock.
type clock struct {
	mu  *sync.Mutex
	now func() time.Time

	playing bool
	// startedAt is the wall time of the last Play; valid only while playing.
	startedAt time.Time
	// elapsed is the time accumulated before the last Pause.
	elapsed time.Duration
}

// Clock is the play/pause transport that drives animated passes.
// Time freezes while paused and resumes from the same point on Play.
type Clock interface {
	// Play starts or resumes the clock. Calling Play while playing does nothing.
	Play()

	// Pause freezes the clock. Calling Pause while paused does nothing.
	Pause()

	// Toggle switches between playing and paused.
	//
	// Returns:
	//   - bool: true if the clock is playing after the toggle
	Toggle() bool

	// Reset sets the elapsed time back to zero, keeping the play state.
	Reset()

	// Playing reports whether the clock is running.
	//
	// Returns:
	//   - bool: true while playing
	Playing() bool

	// Seconds returns the elapsed play time.
	//
	// Returns:
	//   - float64: the elapsed play time in seconds
	Seconds() float64

	// Beat returns the beat position at the given tempo.
	//
	// Parameters:
	//   - bpm: beats per minute
	//
	// Returns:
	//   - float64: seconds * bpm / 60
	Beat(bpm float64) float64
}

var _ Clock = &clock{}

// NewClock creates a transport clock. The clock starts playing unless WithPaused is given.
//
// Parameters:
//   - options: functional options for clock configuration
//
// Returns:
//   - Clock: the newly created clock
func NewClock(options ...ClockBuilderOption) Clock {
	c := &clock{
		mu:      &sync.Mutex{},
		now:     time.Now,
		playing: true,
	}
	for _, opt := range options {
		opt(c)
	}
	if c.playing {
		c.startedAt = c.now()
	}
	return c
}

func (c *clock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing {
		return
	}
	c.playing = true
	c.startedAt = c.now()
}

func (c *clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.elapsed += c.now().Sub(c.startedAt)
	c.playing = false
}

func (c *clock) Toggle() bool {
	if c.Playing() {
		c.Pause()
		return false
	}
	c.Play()
	return true
}

func (c *clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.elapsed = 0
	if c.playing {
		c.startedAt = c.now()
	}
}

func (c *clock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

func (c *clock) Seconds() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.elapsed
	if c.playing {
		d += c.now().Sub(c.startedAt)
	}
	return d.Seconds()
}

func (c *clock) Beat(bpm float64) float64 {
	return c.Seconds() * bpm / 60
}
