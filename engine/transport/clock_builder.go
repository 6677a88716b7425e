package transport

import "time"

// ClockBuilderOption is a functional option for configuring a Clock.
type ClockBuilderOption func(*clock)

// WithNow replaces the wall-time source. Tests use it to step time by hand.
//
// Parameters:
//   - now: the function returning the current time
//
// Returns:
//   - ClockBuilderOption: a function that applies the time source to a clock
func WithNow(now func() time.Time) ClockBuilderOption {
	return func(c *clock) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPaused creates the clock in the paused state.
//
// Returns:
//   - ClockBuilderOption: a function that starts the clock paused
func WithPaused() ClockBuilderOption {
	return func(c *clock) {
		c.playing = false
	}
}
