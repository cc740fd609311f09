package engine

import "sync/atomic"

// Clock counts simulation ticks.
//
// Every tick takes the next number from the clock before it steps the
// world, and journal entries are stamped with the current value, so the
// journal can be read against the tick timeline.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Only the Run loop calls Next; health checks read Current.
type Clock struct {
	tick atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next tick number and increments the clock.
func (c *Clock) Next() int64 {
	return c.tick.Add(1)
}

// Current returns the current tick number without incrementing.
func (c *Clock) Current() int64 {
	return c.tick.Load()
}
