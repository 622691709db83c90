package simulate

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"chatlimit/internal/models"
	"chatlimit/internal/ratelimit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func writeTrace(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestGenerate_DefaultShape(t *testing.T) {
	cfg := models.NewDefaultConfig().Simulation
	events := Generate(cfg)

	require.Len(t, events, cfg.Messages*cfg.Rounds)
	assert.Zero(t, events[0].At)

	for i, ev := range events {
		n := i + 1
		assert.Equal(t, strconv.Itoa(n%cfg.Users+1), ev.Identity, "message %d", n)

		if i == 0 {
			continue
		}
		gap := ev.At - events[i-1].At
		if i == cfg.Messages {
			assert.GreaterOrEqual(t, gap, cfg.Pause+cfg.MinGap, "round boundary")
			assert.LessOrEqual(t, gap, cfg.Pause+cfg.MaxGap, "round boundary")
			continue
		}
		assert.GreaterOrEqual(t, gap, cfg.MinGap)
		assert.LessOrEqual(t, gap, cfg.MaxGap)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := models.NewDefaultConfig().Simulation

	assert.Equal(t, Generate(cfg), Generate(cfg))

	other := cfg
	other.Seed = cfg.Seed + 1
	assert.NotEqual(t, Generate(cfg), Generate(other))
}

func TestGenerate_FixedGap(t *testing.T) {
	cfg := models.SimulationConfig{
		Users:    2,
		Messages: 3,
		Rounds:   2,
		MinGap:   time.Second,
		MaxGap:   time.Second,
		Pause:    10 * time.Second,
	}

	want := []Event{
		{Identity: "2", At: 0},
		{Identity: "1", At: 1 * time.Second},
		{Identity: "2", At: 2 * time.Second},
		{Identity: "1", At: 13 * time.Second},
		{Identity: "2", At: 14 * time.Second},
		{Identity: "1", At: 15 * time.Second},
	}
	assert.Equal(t, want, Generate(cfg))
}

func TestGenerate_Empty(t *testing.T) {
	assert.Empty(t, Generate(models.SimulationConfig{Users: 1, Messages: 0, Rounds: 1}))
	assert.Empty(t, Generate(models.SimulationConfig{}))
}

func TestLoadTrace_YAML(t *testing.T) {
	path := writeTrace(t, "trace.yaml", `
- identity: u1
  at: 0s
- identity: u1
  at: 5s
- identity: u2
  at: 1.5s
`)

	events, err := LoadTrace(path)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Identity: "u1", At: 0},
		{Identity: "u1", At: 5 * time.Second},
		{Identity: "u2", At: 1500 * time.Millisecond},
	}, events)
}

func TestLoadTrace_JSON(t *testing.T) {
	path := writeTrace(t, "trace.json", `[{"identity": "u1", "at": "0s"}, {"identity": "u1", "at": "250ms"}]`)

	events, err := LoadTrace(path)
	require.NoError(t, err)
	assert.Equal(t, []Event{
		{Identity: "u1", At: 0},
		{Identity: "u1", At: 250 * time.Millisecond},
	}, events)
}

func TestLoadTrace_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "malformed", content: "- identity: [", wantErr: "failed to parse trace file"},
		{name: "missing identity", content: "- at: 1s", wantErr: "identity is required"},
		{name: "negative offset", content: "- identity: u1\n  at: -1s", wantErr: "offset cannot be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTrace(writeTrace(t, "trace.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	_, err := LoadTrace(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read trace file")
}

func TestRun_SlidingWindowScenario(t *testing.T) {
	clock := ratelimit.NewManualClock(epoch)
	limiter, err := ratelimit.NewSlidingWindowLimiter(10*time.Second, 1, ratelimit.WithClock(clock))
	require.NoError(t, err)

	events := []Event{
		{Identity: "u1", At: 0},
		{Identity: "u1", At: 5 * time.Second},
		{Identity: "u1", At: 11 * time.Second},
	}

	run, err := Run(context.Background(), limiter, clock, events, nil)
	require.NoError(t, err)
	require.Len(t, run.Decisions, 3)
	assert.NotEmpty(t, run.ID)

	assert.Equal(t, models.Decision{Seq: 1, Identity: "u1", At: 0, Admitted: true, Wait: 10 * time.Second}, run.Decisions[0])
	assert.Equal(t, models.Decision{Seq: 2, Identity: "u1", At: 5 * time.Second, Admitted: false, Wait: 5 * time.Second}, run.Decisions[1])
	assert.Equal(t, models.Decision{Seq: 3, Identity: "u1", At: 11 * time.Second, Admitted: true, Wait: 10 * time.Second}, run.Decisions[2])

	assert.Equal(t, epoch.Add(11*time.Second), clock.Now())
}

func TestRun_ThrottleScenario(t *testing.T) {
	clock := ratelimit.NewManualClock(epoch)
	limiter, err := ratelimit.NewThrottleLimiter(10*time.Second, ratelimit.WithClock(clock))
	require.NoError(t, err)

	events := []Event{
		{Identity: "u1", At: 0},
		{Identity: "u1", At: 3 * time.Second},
		{Identity: "u1", At: 10 * time.Second},
	}

	run, err := Run(context.Background(), limiter, clock, events, nil)
	require.NoError(t, err)

	admitted := []bool{run.Decisions[0].Admitted, run.Decisions[1].Admitted, run.Decisions[2].Admitted}
	assert.Equal(t, []bool{true, false, true}, admitted)
	assert.Equal(t, 7*time.Second, run.Decisions[1].Wait)
}

func TestRun_DefaultDemoFirstRound(t *testing.T) {
	cfg := models.NewDefaultConfig()
	clock := ratelimit.NewManualClock(epoch)
	limiter, err := ratelimit.New(cfg.Limiter, ratelimit.WithClock(clock))
	require.NoError(t, err)

	run, err := Run(context.Background(), limiter, clock, Generate(cfg.Simulation), nil)
	require.NoError(t, err)

	// Each of the five users gets exactly one message through in the first
	// round; the remaining five arrive well inside the 10s window.
	for i := 0; i < 5; i++ {
		assert.True(t, run.Decisions[i].Admitted, "message %d", i+1)
	}
	for i := 5; i < 10; i++ {
		assert.False(t, run.Decisions[i].Admitted, "message %d", i+1)
		assert.Positive(t, run.Decisions[i].Wait, "message %d", i+1)
	}
}

func TestRun_OrdersByOffset(t *testing.T) {
	clock := ratelimit.NewManualClock(epoch)
	limiter, err := ratelimit.NewThrottleLimiter(time.Second, ratelimit.WithClock(clock))
	require.NoError(t, err)

	events := []Event{
		{Identity: "b", At: 2 * time.Second},
		{Identity: "a", At: 0},
		{Identity: "c", At: 2 * time.Second},
	}

	run, err := Run(context.Background(), limiter, clock, events, nil)
	require.NoError(t, err)

	ids := make([]string, 0, len(run.Decisions))
	for i, d := range run.Decisions {
		assert.Equal(t, i+1, d.Seq)
		ids = append(ids, d.Identity)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)

	// The input slice is left untouched.
	assert.Equal(t, "b", events[0].Identity)
}

func TestRun_Sink(t *testing.T) {
	clock := ratelimit.NewManualClock(epoch)
	limiter, err := ratelimit.NewSlidingWindowLimiter(time.Minute, 2, ratelimit.WithClock(clock))
	require.NoError(t, err)

	var seen []models.Decision
	run, err := Run(context.Background(), limiter, clock, []Event{
		{Identity: "u1", At: 0},
		{Identity: "u1", At: time.Second},
		{Identity: "u1", At: 2 * time.Second},
	}, func(d models.Decision) {
		seen = append(seen, d)
	})
	require.NoError(t, err)
	assert.Equal(t, run.Decisions, seen)

	summary := run.Summarize()
	assert.Equal(t, 2, summary.Admitted)
	assert.Equal(t, 1, summary.Rejected)
}

func TestRun_Cancelled(t *testing.T) {
	clock := ratelimit.NewManualClock(epoch)
	limiter, err := ratelimit.NewThrottleLimiter(time.Second, ratelimit.WithClock(clock))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err = Run(ctx, limiter, clock, []Event{
		{Identity: "u1", At: 0},
		{Identity: "u2", At: time.Second},
	}, func(models.Decision) {
		calls++
		cancel()
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
