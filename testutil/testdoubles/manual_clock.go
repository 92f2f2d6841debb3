package testdoubles

import (
	"sync"
	"time"
)

// ManualClock is a controllable real-time source for driving virtual clocks
// and rate windows deterministically in tests.
type ManualClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewManualClock creates a ManualClock frozen at the given instant.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{current: start}
}

// Now returns the current manual time. Pass this method as a now-func
// option to the component under test.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the manual time forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}
