package content

import "sync/atomic"

// revisionClock is a monotonically increasing mutation counter.
// It is safe for concurrent use.
type revisionClock struct {
	counter atomic.Uint64
}

// Tick increments the clock and returns the new value.
func (c *revisionClock) Tick() uint64 {
	return c.counter.Add(1)
}

// Current returns the current value without incrementing.
func (c *revisionClock) Current() uint64 {
	return c.counter.Load()
}
