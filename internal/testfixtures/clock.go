package testfixtures

import (
	"sync"
	"time"
)

// Clock is a movable time source for tests that exercise TTLs, swap
// timeouts, and reminder windows. Services receive it through NowFunc.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock pinned to start, or to ReferenceTime when start
// is the zero value.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

// Now returns the instant the clock currently reports.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc adapts the clock to the now func the service constructors take.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Set pins the clock to t.
func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the new instant.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	updated := c.current
	c.mu.Unlock()
	return updated
}
