package ratelimit

import (
	"testing"
	"time"

	"chatlimit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SelectsAlgorithm(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LimiterConfig
		want interface{}
	}{
		{
			name: "sliding window",
			cfg:  models.LimiterConfig{Algorithm: AlgorithmSlidingWindow, WindowSize: 10 * time.Second, MaxRequests: 1},
			want: &SlidingWindowLimiter{},
		},
		{
			name: "throttle",
			cfg:  models.LimiterConfig{Algorithm: AlgorithmThrottle, MinInterval: 10 * time.Second},
			want: &ThrottleLimiter{},
		},
		{
			name: "token bucket",
			cfg:  models.LimiterConfig{Algorithm: AlgorithmTokenBucket, Rate: 1, Burst: 1},
			want: &TokenBucketLimiter{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.want, l)
			assert.Implements(t, (*Sweeper)(nil), l)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LimiterConfig
	}{
		{name: "unknown algorithm", cfg: models.LimiterConfig{Algorithm: "leaky_bucket"}},
		{name: "empty algorithm", cfg: models.LimiterConfig{}},
		{name: "sliding window without size", cfg: models.LimiterConfig{Algorithm: AlgorithmSlidingWindow, MaxRequests: 1}},
		{name: "throttle without interval", cfg: models.LimiterConfig{Algorithm: AlgorithmThrottle}},
		{name: "token bucket without burst", cfg: models.LimiterConfig{Algorithm: AlgorithmTokenBucket, Rate: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.cfg)
			assert.Nil(t, l)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestNew_PassesClock(t *testing.T) {
	clock := NewManualClock(epoch)
	l, err := New(models.LimiterConfig{Algorithm: AlgorithmThrottle, MinInterval: time.Minute}, WithClock(clock))
	require.NoError(t, err)

	require.True(t, l.RecordMessage("u1"))
	clock.Advance(45 * time.Second)
	assert.Equal(t, 15*time.Second, l.TimeUntilNextAllowed("u1"))
}

func TestSupportedAlgorithms(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"sliding_window", "throttle", "token_bucket"},
		SupportedAlgorithms(),
	)
}
