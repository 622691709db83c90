package ratelimit

import (
	"sync"
	"time"
)

// Clock supplies the current time to a limiter.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now, which carries a monotonic reading on supported
// platforms.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a Clock that only moves when told to. It is used by the
// replay driver and by tests.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the clock's current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Set moves the clock to t. Moving backwards is allowed so tests can exercise
// regression handling.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// steadyClock wraps a Clock and never reports a time earlier than one it has
// already reported. Callers must serialize access.
type steadyClock struct {
	src  Clock
	last time.Time
}

func (s *steadyClock) now() time.Time {
	t := s.src.Now()
	if t.Before(s.last) {
		return s.last
	}
	s.last = t
	return t
}
