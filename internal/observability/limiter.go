package observability

import (
	"context"
	"log/slog"
	"time"

	"chatlimit/internal/ratelimit"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "chatlimit/ratelimit"

// InstrumentedLimiter wraps a ratelimit.RateLimiter and records admission
// decisions, wait estimates and sweep results as OpenTelemetry metrics.
type InstrumentedLimiter struct {
	inner ratelimit.RateLimiter
	attrs attribute.Set

	decisions metric.Int64Counter
	wait      metric.Float64Histogram
	swept     metric.Int64Counter
}

// InstrumentOption configures an InstrumentedLimiter.
type InstrumentOption func(*instrumentConfig)

type instrumentConfig struct {
	meterProvider metric.MeterProvider
}

// WithMeterProvider records into mp instead of the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) InstrumentOption {
	return func(c *instrumentConfig) {
		c.meterProvider = mp
	}
}

// NewInstrumentedLimiter wraps inner. algorithm is attached to every
// measurement so several limiters can share one meter provider.
func NewInstrumentedLimiter(inner ratelimit.RateLimiter, algorithm string, opts ...InstrumentOption) (*InstrumentedLimiter, error) {
	cfg := instrumentConfig{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}
	meter := cfg.meterProvider.Meter(instrumentationName)

	decisions, err := meter.Int64Counter(
		"chatlimit.decisions",
		metric.WithDescription("Number of admission decisions"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	wait, err := meter.Float64Histogram(
		"chatlimit.wait",
		metric.WithDescription("Time until the next message would be admitted"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	swept, err := meter.Int64Counter(
		"chatlimit.swept",
		metric.WithDescription("Number of idle identities dropped by sweeps"),
		metric.WithUnit("{identity}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedLimiter{
		inner:     inner,
		attrs:     attribute.NewSet(attribute.String("algorithm", algorithm)),
		decisions: decisions,
		wait:      wait,
		swept:     swept,
	}, nil
}

// CanSend queries the wrapped limiter. Queries are not counted.
func (l *InstrumentedLimiter) CanSend(id string) bool {
	return l.inner.CanSend(id)
}

// RecordMessage records the decision under result=admitted|rejected.
func (l *InstrumentedLimiter) RecordMessage(id string) bool {
	admitted := l.inner.RecordMessage(id)

	result := "admitted"
	if !admitted {
		result = "rejected"
		slog.Debug("Message rejected", "identity", id)
	}
	l.decisions.Add(context.Background(), 1,
		metric.WithAttributeSet(l.attrs),
		metric.WithAttributes(attribute.String("result", result)),
	)
	return admitted
}

// TimeUntilNextAllowed records the returned wait in seconds.
func (l *InstrumentedLimiter) TimeUntilNextAllowed(id string) time.Duration {
	d := l.inner.TimeUntilNextAllowed(id)
	l.wait.Record(context.Background(), d.Seconds(), metric.WithAttributeSet(l.attrs))
	return d
}

// Sweep forwards to the wrapped limiter when it supports sweeping.
func (l *InstrumentedLimiter) Sweep() int {
	s, ok := l.inner.(ratelimit.Sweeper)
	if !ok {
		return 0
	}
	n := s.Sweep()
	if n > 0 {
		l.swept.Add(context.Background(), int64(n), metric.WithAttributeSet(l.attrs))
	}
	return n
}
