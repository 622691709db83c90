package ratelimit

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucketLimiter gives each identity its own token bucket backed by
// golang.org/x/time/rate. Buckets start full, hold at most burst tokens and
// refill at perSecond tokens per second. All bucket reads are evaluated at the
// limiter's clock rather than the wall clock.
type TokenBucketLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clock   steadyClock
	buckets map[string]*rate.Limiter
}

// NewTokenBucketLimiter creates a token bucket limiter. perSecond must be
// positive and burst at least 1.
func NewTokenBucketLimiter(perSecond float64, burst int, opts ...Option) (*TokenBucketLimiter, error) {
	if perSecond <= 0 || math.IsNaN(perSecond) || math.IsInf(perSecond, 0) {
		return nil, fmt.Errorf("%w: rate must be a positive finite number, got %v", ErrInvalidConfiguration, perSecond)
	}
	if burst < 1 {
		return nil, fmt.Errorf("%w: burst must be at least 1, got %d", ErrInvalidConfiguration, burst)
	}

	o := buildOptions(opts)
	return &TokenBucketLimiter{
		limit:   rate.Limit(perSecond),
		burst:   burst,
		clock:   steadyClock{src: o.clock},
		buckets: make(map[string]*rate.Limiter),
	}, nil
}

// CanSend reports whether id's bucket holds at least one token.
func (l *TokenBucketLimiter) CanSend(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[id]
	if !ok {
		return true
	}
	return b.TokensAt(l.clock.now()) >= 1
}

// RecordMessage takes one token from id's bucket if available.
func (l *TokenBucketLimiter) RecordMessage(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[id]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.buckets[id] = b
	}
	return b.AllowN(l.clock.now(), 1)
}

// TimeUntilNextAllowed returns how long until id's bucket refills to one token.
func (l *TokenBucketLimiter) TimeUntilNextAllowed(id string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[id]
	if !ok {
		return 0
	}
	tokens := b.TokensAt(l.clock.now())
	if tokens >= 1 {
		return 0
	}
	seconds := (1 - tokens) / float64(l.limit)
	return nonNegative(time.Duration(math.Ceil(seconds * float64(time.Second))))
}

// Sweep drops identities whose bucket has refilled completely.
func (l *TokenBucketLimiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.now()
	removed := 0
	for id, b := range l.buckets {
		if b.TokensAt(now) >= float64(l.burst) {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}
