// Package simulate drives a rate limiter with a timed stream of messages on a
// manual clock, so a replay takes no wall-clock time and is reproducible.
package simulate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"sort"
	"strconv"
	"time"

	"chatlimit/internal/models"
	"chatlimit/internal/ratelimit"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// Event is one message arrival.
type Event struct {
	Identity string        `yaml:"identity" json:"identity"`
	At       time.Duration `yaml:"at" json:"at"` // Offset from the start of the run
}

// Sink receives each decision as soon as it is made.
type Sink func(models.Decision)

// Generate builds the demo traffic described by cfg. Messages are numbered
// from 1 across all rounds and message n belongs to user n%Users+1. The same
// seed always yields the same events.
func Generate(cfg models.SimulationConfig) []Event {
	if cfg.Users < 1 || cfg.Messages < 1 || cfg.Rounds < 1 {
		return nil
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	span := int64(cfg.MaxGap - cfg.MinGap)

	events := make([]Event, 0, cfg.Messages*cfg.Rounds)
	var at time.Duration
	for round := 0; round < cfg.Rounds; round++ {
		if round > 0 {
			at += cfg.Pause
		}
		for i := 1; i <= cfg.Messages; i++ {
			n := round*cfg.Messages + i
			events = append(events, Event{
				Identity: strconv.Itoa(n%cfg.Users + 1),
				At:       at,
			})

			gap := cfg.MinGap
			if span > 0 {
				gap += time.Duration(rng.Int64N(span + 1))
			}
			at += gap
		}
	}
	return events
}

// LoadTrace reads a list of events from a YAML or JSON file. Offsets are
// duration strings such as "1.5s".
func LoadTrace(path string) ([]Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace file: %w", err)
	}

	var events []Event
	if err := yaml.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("failed to parse trace file: %w", err)
	}

	for i, ev := range events {
		if ev.Identity == "" {
			return nil, fmt.Errorf("trace event %d: identity is required", i+1)
		}
		if ev.At < 0 {
			return nil, fmt.Errorf("trace event %d: offset cannot be negative", i+1)
		}
	}
	return events, nil
}

// Run replays events through limiter. The clock is moved to the start time
// plus each event's offset, then RecordMessage and TimeUntilNextAllowed are
// called for the event's identity. Events are replayed in offset order; ties
// keep their input order. sink may be nil.
func Run(ctx context.Context, limiter ratelimit.RateLimiter, clock *ratelimit.ManualClock, events []Event, sink Sink) (*models.Run, error) {
	ctx, span := otel.Tracer("chatlimit/simulate").Start(ctx, "simulate.Run",
		trace.WithAttributes(attribute.Int("simulate.events", len(events))),
	)
	defer span.End()

	ordered := make([]Event, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].At < ordered[j].At
	})

	run := &models.Run{
		ID:        uuid.New().String(),
		CreatedAt: time.Now().UTC(),
		Decisions: make([]models.Decision, 0, len(ordered)),
	}

	start := clock.Now()
	admitted := 0
	for i, ev := range ordered {
		if err := ctx.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("run interrupted after %d events: %w", i, err)
		}

		clock.Set(start.Add(ev.At))
		d := models.Decision{
			Seq:      i + 1,
			Identity: ev.Identity,
			At:       ev.At,
			Admitted: limiter.RecordMessage(ev.Identity),
			Wait:     limiter.TimeUntilNextAllowed(ev.Identity),
		}
		if d.Admitted {
			admitted++
		}

		run.Decisions = append(run.Decisions, d)
		if sink != nil {
			sink(d)
		}
	}

	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Int("simulate.admitted", admitted),
		attribute.Int("simulate.rejected", len(ordered)-admitted),
	)
	span.SetStatus(codes.Ok, "")
	return run, nil
}
