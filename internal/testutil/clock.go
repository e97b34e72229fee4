package testutil

import (
	"sync"
	"time"
)

// Epoch is the first instant reported by a Clock.
var Epoch = time.Date(2025, 7, 20, 12, 0, 0, 0, time.UTC)

// Clock is a deterministic wall clock for tests.
//
// Every call to Now advances the clock by Step, so a stage timed with two
// Now calls always takes exactly Step. Advance adds extra time between calls,
// which lets a fake collaborator pretend to be slow.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type Clock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

// NewClock creates a clock at Epoch that advances step per Now call.
func NewClock(step time.Duration) *Clock {
	return &Clock{now: Epoch, step: step}
}

// Now returns the current instant and then advances the clock by one step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

// Advance moves the clock forward by d without returning a reading.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Peek returns the instant the next Now call will report.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Reset puts the clock back to Epoch.
//
// Used for test reuse.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = Epoch
}
