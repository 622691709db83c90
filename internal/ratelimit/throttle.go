package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// ThrottleLimiter enforces a minimum interval between accepted messages from
// the same identity. Only the most recent accepted timestamp is kept.
type ThrottleLimiter struct {
	minInterval time.Duration

	mu           sync.Mutex
	clock        steadyClock
	lastAccepted map[string]time.Time
}

// NewThrottleLimiter creates a throttle limiter. minInterval must be positive.
func NewThrottleLimiter(minInterval time.Duration, opts ...Option) (*ThrottleLimiter, error) {
	if minInterval <= 0 {
		return nil, fmt.Errorf("%w: min interval must be positive, got %s", ErrInvalidConfiguration, minInterval)
	}

	o := buildOptions(opts)
	return &ThrottleLimiter{
		minInterval:  minInterval,
		clock:        steadyClock{src: o.clock},
		lastAccepted: make(map[string]time.Time),
	}, nil
}

// MinInterval returns the configured interval.
func (l *ThrottleLimiter) MinInterval() time.Duration {
	return l.minInterval
}

// CanSend reports whether minInterval has passed since id's last message.
func (l *ThrottleLimiter) CanSend(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.admissibleLocked(id, l.clock.now())
}

// RecordMessage stores the current time as id's last message if admissible.
func (l *ThrottleLimiter) RecordMessage(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.now()
	if !l.admissibleLocked(id, now) {
		return false
	}
	l.lastAccepted[id] = now
	return true
}

// TimeUntilNextAllowed returns the remainder of id's interval.
func (l *ThrottleLimiter) TimeUntilNextAllowed(id string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok := l.lastAccepted[id]
	if !ok {
		return 0
	}
	return nonNegative(l.minInterval - l.clock.now().Sub(last))
}

// Sweep drops identities whose interval has fully elapsed.
func (l *ThrottleLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.now()
	removed := 0
	for id, last := range l.lastAccepted {
		if now.Sub(last) >= l.minInterval {
			delete(l.lastAccepted, id)
			removed++
		}
	}
	return removed
}

func (l *ThrottleLimiter) admissibleLocked(id string, now time.Time) bool {
	last, ok := l.lastAccepted[id]
	if !ok {
		return true
	}
	return now.Sub(last) >= l.minInterval
}
