package ratelimit

import (
	"fmt"

	"chatlimit/internal/models"
)

// Algorithm names accepted by New.
const (
	AlgorithmSlidingWindow = models.AlgorithmSlidingWindow
	AlgorithmThrottle      = models.AlgorithmThrottle
	AlgorithmTokenBucket   = models.AlgorithmTokenBucket
)

// New builds the limiter selected by cfg.Algorithm. Only the parameters of the
// selected algorithm are read.
//   - sliding_window: WindowSize, MaxRequests
//   - throttle: MinInterval
//   - token_bucket: Rate, Burst
func New(cfg models.LimiterConfig, opts ...Option) (RateLimiter, error) {
	var (
		l   RateLimiter
		err error
	)

	switch cfg.Algorithm {
	case AlgorithmSlidingWindow:
		l, err = NewSlidingWindowLimiter(cfg.WindowSize, cfg.MaxRequests, opts...)
	case AlgorithmThrottle:
		l, err = NewThrottleLimiter(cfg.MinInterval, opts...)
	case AlgorithmTokenBucket:
		l, err = NewTokenBucketLimiter(cfg.Rate, cfg.Burst, opts...)
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidConfiguration, cfg.Algorithm)
	}

	if err != nil {
		return nil, err
	}
	return l, nil
}

// SupportedAlgorithms lists the names accepted by New.
func SupportedAlgorithms() []string {
	return []string{AlgorithmSlidingWindow, AlgorithmThrottle, AlgorithmTokenBucket}
}
