// Command chatlimit replays chat traffic through a per-identity rate limiter
// and records every admission decision in a journal.
//
// Usage:
//
//	chatlimit [-config file] simulate
//	chatlimit [-config file] replay TRACE
//	chatlimit [-config file] runs [RUN_ID]
//	chatlimit example-config PATH
//	chatlimit version
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatlimit/internal/config"
	"chatlimit/internal/journal"
	"chatlimit/internal/logger"
	"chatlimit/internal/models"
	"chatlimit/internal/observability"
	"chatlimit/internal/ratelimit"
	"chatlimit/internal/simulate"
	"chatlimit/internal/version"
)

const usage = `Usage: chatlimit [-config file] <command> [args]

Commands:
  simulate              replay generated demo traffic
  replay TRACE          replay the events in a YAML or JSON trace file
  runs [RUN_ID]         list journaled runs, or show one run's decisions
  example-config PATH   write an example configuration file
  version               print build information
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("chatlimit failed", "error", err)
		os.Exit(1)
	}
}

// run parses args and executes one command, writing human-readable output
// to stdout.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("chatlimit", flag.ContinueOnError)
	fs.SetOutput(stdout)
	fs.Usage = func() { fmt.Fprint(stdout, usage) }
	configFile := fs.String("config", "", "Path to configuration file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("no command given")
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]

	switch cmd {
	case "version":
		fmt.Fprintln(stdout, version.GetInfo().String())
		return nil
	case "example-config":
		if len(rest) != 1 {
			return errors.New("example-config requires a PATH")
		}
		if err := config.SaveExample(rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Example configuration written to %s\n", rest[0])
		return nil
	case "simulate", "replay", "runs":
	default:
		fs.Usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	app, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer app.close()

	switch cmd {
	case "simulate":
		if len(rest) != 0 {
			return errors.New("simulate takes no arguments")
		}
		return app.replay(ctx, stdout, "simulation", simulate.Generate(cfg.Simulation))
	case "replay":
		if len(rest) != 1 {
			return errors.New("replay requires a TRACE file")
		}
		events, err := simulate.LoadTrace(rest[0])
		if err != nil {
			return err
		}
		return app.replay(ctx, stdout, rest[0], events)
	default:
		if len(rest) > 1 {
			return errors.New("runs takes at most one RUN_ID")
		}
		if len(rest) == 1 {
			return app.showRun(ctx, stdout, rest[0])
		}
		return app.listRuns(ctx, stdout)
	}
}

// app holds the process-wide services shared by the commands.
type app struct {
	cfg           *models.Config
	logCloser     io.Closer
	otel          *observability.Provider
	metricsServer *observability.MetricsServer
	journal       journal.Journal
	janitor       *ratelimit.Janitor
}

func newApp(cfg *models.Config) (*app, error) {
	ver := version.GetInfo()

	log, closer, err := logger.Setup(cfg.Logging, ver)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	slog.SetDefault(log)

	a := &app{cfg: cfg, logCloser: closer}

	a.otel, err = observability.Setup(cfg, ver)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	j, err := journal.New(cfg.Journal)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	a.journal = j

	if cfg.Metrics.Enabled || cfg.Observability.Tracing.Enabled {
		instrumented, err := observability.NewInstrumentedJournal(j)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to create instrumented journal: %w", err)
		}
		a.journal = instrumented
	}

	if cfg.Metrics.Enabled {
		a.metricsServer = observability.NewMetricsServer(cfg.Metrics, nil)
		go func() {
			if err := a.metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server failed", "error", err)
			}
		}()
	}

	slog.Info("chatlimit started",
		"algorithm", cfg.Limiter.Algorithm,
		"journal", cfg.Journal.Type,
		"metrics", cfg.Metrics.Enabled,
		"tracing", cfg.Observability.Tracing.Enabled,
	)
	return a, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a.stopJanitor()
	if a.metricsServer != nil {
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			slog.Error("Metrics server forced to shutdown", "error", err)
		}
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			slog.Error("Failed to close journal", "error", err)
		}
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			slog.Error("Failed to shutdown observability", "error", err)
		}
	}
	if a.logCloser != nil {
		a.logCloser.Close()
	}
}

// newLimiter builds the configured limiter on clock, instrumented when
// metrics are enabled.
func (a *app) newLimiter(clock ratelimit.Clock) (ratelimit.RateLimiter, error) {
	limiter, err := ratelimit.New(a.cfg.Limiter, ratelimit.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create limiter: %w", err)
	}

	if !a.cfg.Metrics.Enabled {
		return limiter, nil
	}

	instrumented, err := observability.NewInstrumentedLimiter(limiter, a.cfg.Limiter.Algorithm)
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumented limiter: %w", err)
	}
	return instrumented, nil
}

func (a *app) replay(ctx context.Context, stdout io.Writer, source string, events []simulate.Event) error {
	clock := ratelimit.NewManualClock(time.Now())
	limiter, err := a.newLimiter(clock)
	if err != nil {
		return err
	}

	slog.Info("Replaying messages", "source", source, "events", len(events))

	result, err := simulate.Run(ctx, limiter, clock, events, logDecision)
	if err != nil {
		return err
	}
	result.Algorithm = a.cfg.Limiter.Algorithm
	result.Source = source

	if err := a.journal.SaveRun(ctx, result); err != nil {
		return fmt.Errorf("failed to journal run: %w", err)
	}

	summary := result.Summarize()
	slog.Info("Replay complete",
		"run_id", result.ID,
		"total", summary.Total,
		"admitted", summary.Admitted,
		"rejected", summary.Rejected,
	)
	printSummary(stdout, result, summary)

	if a.metricsServer != nil {
		if err := a.startJanitor(limiter); err != nil {
			return err
		}
		slog.Info("Serving metrics until interrupted", "addr", a.metricsServer.Addr())
		<-ctx.Done()
		a.stopJanitor()
	}
	return nil
}

// startJanitor attaches a Janitor for the metrics-serving phase. The replay
// clock only moves with events, so sweeping during the replay itself would
// find nothing new; once the replay ends, a sweep releases every identity
// that was already idle at the last event.
func (a *app) startJanitor(limiter ratelimit.RateLimiter) error {
	if a.cfg.Limiter.SweepInterval <= 0 {
		return nil
	}
	sweeper, ok := limiter.(ratelimit.Sweeper)
	if !ok {
		return nil
	}

	janitor, err := ratelimit.NewJanitor(sweeper, a.cfg.Limiter.SweepInterval)
	if err != nil {
		return fmt.Errorf("failed to start janitor: %w", err)
	}
	a.janitor = janitor
	return nil
}

func (a *app) stopJanitor() {
	if a.janitor != nil {
		a.janitor.Close()
		a.janitor = nil
	}
}

func (a *app) listRuns(ctx context.Context, stdout io.Writer) error {
	runs, err := a.journal.ListRuns(ctx)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(stdout, "No runs recorded")
		return nil
	}

	for _, r := range runs {
		s := r.Summarize()
		fmt.Fprintf(stdout, "%s  %s  %-14s  %3d admitted  %3d rejected  %s\n",
			r.ID, r.CreatedAt.Format(time.RFC3339), r.Algorithm, s.Admitted, s.Rejected, r.Source)
	}
	return nil
}

func (a *app) showRun(ctx context.Context, stdout io.Writer, id string) error {
	r, err := a.journal.GetRun(ctx, id)
	if err != nil {
		return err
	}

	for _, d := range r.Decisions {
		fmt.Fprintln(stdout, formatDecision(d))
	}
	printSummary(stdout, r, r.Summarize())
	return nil
}

func logDecision(d models.Decision) {
	if d.Admitted {
		slog.Info("Message admitted", "seq", d.Seq, "identity", d.Identity, "at", d.At)
		return
	}
	slog.Info("Message rejected", "seq", d.Seq, "identity", d.Identity, "at", d.At, "wait", d.Wait)
}

func formatDecision(d models.Decision) string {
	if d.Admitted {
		return fmt.Sprintf("Message %3d | User %s | admitted", d.Seq, d.Identity)
	}
	return fmt.Sprintf("Message %3d | User %s | rejected (wait %.1fs)", d.Seq, d.Identity, d.Wait.Seconds())
}

func printSummary(w io.Writer, r *models.Run, s models.Summary) {
	fmt.Fprintf(w, "Run %s (%s, %s)\n", r.ID, r.Algorithm, r.Source)
	fmt.Fprintf(w, "  total %d, admitted %d, rejected %d\n", s.Total, s.Admitted, s.Rejected)
	for _, id := range s.Identities {
		fmt.Fprintf(w, "  user %-10s admitted %3d  rejected %3d\n", id.Identity, id.Admitted, id.Rejected)
	}
}
