package observability

import (
	"context"
	"time"

	"chatlimit/internal/journal"
	"chatlimit/internal/models"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedJournal wraps a journal.Journal with OpenTelemetry tracing and
// metrics instrumentation.
type InstrumentedJournal struct {
	inner    journal.Journal
	tracer   trace.Tracer
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// NewInstrumentedJournal creates a journal wrapper that records trace spans,
// operation latency histograms, and error counters for every journal call.
func NewInstrumentedJournal(inner journal.Journal, opts ...InstrumentOption) (*InstrumentedJournal, error) {
	cfg := instrumentConfig{meterProvider: otel.GetMeterProvider()}
	for _, opt := range opts {
		opt(&cfg)
	}

	tracer := otel.Tracer("chatlimit/journal")
	meter := cfg.meterProvider.Meter("chatlimit/journal")

	duration, err := meter.Float64Histogram(
		"journal.operation.duration",
		metric.WithDescription("Duration of journal operations in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	errCounter, err := meter.Int64Counter(
		"journal.operation.errors",
		metric.WithDescription("Number of journal operation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedJournal{
		inner:    inner,
		tracer:   tracer,
		duration: duration,
		errors:   errCounter,
	}, nil
}

func (j *InstrumentedJournal) startSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return j.tracer.Start(ctx, "journal."+operation,
		trace.WithAttributes(append([]attribute.KeyValue{
			attribute.String("journal.operation", operation),
		}, attrs...)...),
	)
}

func (j *InstrumentedJournal) record(ctx context.Context, span trace.Span, operation string, start time.Time, err error) {
	elapsed := time.Since(start).Seconds()
	attrs := metric.WithAttributes(attribute.String("operation", operation))

	j.duration.Record(ctx, elapsed, attrs)

	if err != nil {
		j.errors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.End()
}

func (j *InstrumentedJournal) SaveRun(ctx context.Context, run *models.Run) error {
	var id string
	if run != nil {
		id = run.ID
	}
	ctx, span := j.startSpan(ctx, "SaveRun", attribute.String("run.id", id))
	start := time.Now()
	err := j.inner.SaveRun(ctx, run)
	j.record(ctx, span, "SaveRun", start, err)
	return err
}

func (j *InstrumentedJournal) GetRun(ctx context.Context, id string) (*models.Run, error) {
	ctx, span := j.startSpan(ctx, "GetRun", attribute.String("run.id", id))
	start := time.Now()
	result, err := j.inner.GetRun(ctx, id)
	j.record(ctx, span, "GetRun", start, err)
	return result, err
}

func (j *InstrumentedJournal) ListRuns(ctx context.Context) ([]*models.Run, error) {
	ctx, span := j.startSpan(ctx, "ListRuns")
	start := time.Now()
	result, err := j.inner.ListRuns(ctx)
	j.record(ctx, span, "ListRuns", start, err)
	return result, err
}

func (j *InstrumentedJournal) Close() error {
	return j.inner.Close()
}
