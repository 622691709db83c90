// Package ratelimit provides per-identity message admission. Each limiter
// tracks state independently per identity and answers three questions: can the
// identity send right now, record a message if so, and how long until the next
// message would be admitted. Sliding window, throttle and token bucket
// strategies share the RateLimiter contract so callers can swap policy at
// construction time.
package ratelimit

import (
	"errors"
	"time"
)

// ErrInvalidConfiguration is returned by constructors when a limiter parameter
// is out of range. The returned error wraps it with the offending field.
var ErrInvalidConfiguration = errors.New("invalid rate limiter configuration")

// RateLimiter defines the admission contract. Implementations must be safe for
// concurrent use and treat unknown identities as having no history.
type RateLimiter interface {
	// CanSend reports whether a message from id would be admitted now.
	// It never records anything.
	CanSend(id string) bool

	// RecordMessage admits and records a message from id if allowed.
	// A rejected call leaves the identity's state untouched.
	RecordMessage(id string) bool

	// TimeUntilNextAllowed returns how long id must wait before a message
	// would be admitted, assuming nothing else is recorded meanwhile.
	// The result is never negative and is zero when CanSend would be true.
	TimeUntilNextAllowed(id string) time.Duration
}

// Sweeper is implemented by limiters that can drop identities whose state is
// indistinguishable from having no history. Sweep returns the number removed.
type Sweeper interface {
	Sweep() int
}

// Option configures a limiter at construction time.
type Option func(*options)

type options struct {
	clock Clock
}

// WithClock sets the time source. The default is the system clock.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{clock: SystemClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// nonNegative clamps d to zero.
func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
