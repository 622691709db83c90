package ratelimit

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSweeper struct {
	calls atomic.Int64
}

func (c *countingSweeper) Sweep() int {
	c.calls.Add(1)
	return 0
}

func TestJanitor_SweepsPeriodically(t *testing.T) {
	s := &countingSweeper{}
	j, err := NewJanitor(s, 10*time.Millisecond)
	require.NoError(t, err)
	defer j.Close()

	assert.Eventually(t, func() bool { return s.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestJanitor_CloseStopsSweeping(t *testing.T) {
	s := &countingSweeper{}
	j, err := NewJanitor(s, 5*time.Millisecond)
	require.NoError(t, err)
	j.Close()

	n := s.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, s.calls.Load())

	// Should not panic on double close
	j.Close()
}

func TestJanitor_EvictsIdleIdentities(t *testing.T) {
	l, err := NewThrottleLimiter(time.Millisecond)
	require.NoError(t, err)
	require.True(t, l.RecordMessage("ephemeral"))

	j, err := NewJanitor(l, 10*time.Millisecond)
	require.NoError(t, err)
	defer j.Close()

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		_, exists := l.lastAccepted["ephemeral"]
		return !exists
	}, time.Second, 5*time.Millisecond, "key should be cleaned up after inactivity")
}

func TestNewJanitor_InvalidConfig(t *testing.T) {
	tests := []struct {
		name     string
		target   Sweeper
		interval time.Duration
	}{
		{name: "zero interval", target: &countingSweeper{}, interval: 0},
		{name: "negative interval", target: &countingSweeper{}, interval: -time.Second},
		{name: "nil target", target: nil, interval: time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := NewJanitor(tt.target, tt.interval)
			assert.Nil(t, j)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}
