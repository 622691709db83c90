package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// SlidingWindowLimiter admits at most maxRequests messages per identity inside
// any trailing window of length windowSize.
//
// Each identity keeps its accepted timestamps oldest-first. Timestamps age out
// lazily: every call trims the identity's prefix of entries at or before
// now-windowSize, so an entry exactly windowSize old is already expired. There
// is no background sweep unless a Janitor is attached.
//
// TimeUntilNextAllowed is measured from the oldest retained timestamp. Because
// the history never holds more than maxRequests entries, a full history frees
// its next slot exactly when that oldest entry expires.
type SlidingWindowLimiter struct {
	windowSize  time.Duration
	maxRequests int

	mu      sync.Mutex
	clock   steadyClock
	history map[string][]time.Time
}

// NewSlidingWindowLimiter creates a sliding window limiter. windowSize must be
// positive and maxRequests at least 1.
func NewSlidingWindowLimiter(windowSize time.Duration, maxRequests int, opts ...Option) (*SlidingWindowLimiter, error) {
	if windowSize <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %s", ErrInvalidConfiguration, windowSize)
	}
	if maxRequests < 1 {
		return nil, fmt.Errorf("%w: max requests must be at least 1, got %d", ErrInvalidConfiguration, maxRequests)
	}

	o := buildOptions(opts)
	return &SlidingWindowLimiter{
		windowSize:  windowSize,
		maxRequests: maxRequests,
		clock:       steadyClock{src: o.clock},
		history:     make(map[string][]time.Time),
	}, nil
}

// WindowSize returns the configured window length.
func (l *SlidingWindowLimiter) WindowSize() time.Duration {
	return l.windowSize
}

// MaxRequests returns the configured per-window capacity.
func (l *SlidingWindowLimiter) MaxRequests() int {
	return l.maxRequests
}

// CanSend reports whether id has room in its current window.
func (l *SlidingWindowLimiter) CanSend(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.cleanupLocked(id, l.clock.now())) < l.maxRequests
}

// RecordMessage appends the current time to id's history if there is room.
func (l *SlidingWindowLimiter) RecordMessage(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.now()
	entries := l.cleanupLocked(id, now)
	if len(entries) >= l.maxRequests {
		return false
	}
	l.history[id] = append(entries, now)
	return true
}

// TimeUntilNextAllowed returns zero while id has room, otherwise the time
// until its oldest retained message leaves the window.
func (l *SlidingWindowLimiter) TimeUntilNextAllowed(id string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.now()
	entries := l.cleanupLocked(id, now)
	if len(entries) < l.maxRequests {
		return 0
	}
	return nonNegative(l.windowSize - now.Sub(entries[0]))
}

// Count returns the number of messages id has inside the current window.
func (l *SlidingWindowLimiter) Count(id string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.cleanupLocked(id, l.clock.now()))
}

// Sweep trims every identity and drops those left with no history.
func (l *SlidingWindowLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.now()
	removed := 0
	for id := range l.history {
		if len(l.cleanupLocked(id, now)) == 0 {
			removed++
		}
	}
	return removed
}

// cleanupLocked drops id's expired prefix and returns what remains. An
// identity left empty is removed from the map. Caller must hold l.mu.
func (l *SlidingWindowLimiter) cleanupLocked(id string, now time.Time) []time.Time {
	entries, ok := l.history[id]
	if !ok {
		return nil
	}

	cutoff := now.Add(-l.windowSize)
	i := 0
	for i < len(entries) && !entries[i].After(cutoff) {
		i++
	}
	if i == len(entries) {
		delete(l.history, id)
		return nil
	}
	if i > 0 {
		entries = entries[i:]
		l.history[id] = entries
	}
	return entries
}
