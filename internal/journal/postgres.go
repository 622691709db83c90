package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"chatlimit/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS chatlimit_runs (
		id         TEXT PRIMARY KEY,
		algorithm  TEXT NOT NULL,
		source     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chatlimit_decisions (
		run_id   TEXT NOT NULL REFERENCES chatlimit_runs (id) ON DELETE CASCADE,
		seq      INTEGER NOT NULL,
		identity TEXT NOT NULL,
		at_ns    BIGINT NOT NULL,
		admitted BOOLEAN NOT NULL,
		wait_ns  BIGINT NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chatlimit_runs_created_at ON chatlimit_runs (created_at)`,
}

var decisionColumns = []string{"run_id", "seq", "identity", "at_ns", "admitted", "wait_ns"}

// PostgresJournal stores runs in PostgreSQL through a pgx connection pool.
// Decisions are bulk-loaded with COPY.
type PostgresJournal struct {
	pool *pgxpool.Pool
}

// NewPostgresJournal connects to dsn and creates the schema.
func NewPostgresJournal(dsn string) (*PostgresJournal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL journal")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &PostgresJournal{pool: pool}, nil
}

// SaveRun upserts the run and replaces its decisions in one transaction.
func (ps *PostgresJournal) SaveRun(ctx context.Context, run *models.Run) error {
	if err := validateRun(run); err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, ps.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO chatlimit_runs (id, algorithm, source, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE
			 SET algorithm = EXCLUDED.algorithm, source = EXCLUDED.source, created_at = EXCLUDED.created_at`,
			run.ID, run.Algorithm, run.Source, run.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM chatlimit_decisions WHERE run_id = $1`, run.ID); err != nil {
			return fmt.Errorf("failed to clear decisions: %w", err)
		}

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"chatlimit_decisions"},
			decisionColumns,
			pgx.CopyFromSlice(len(run.Decisions), func(i int) ([]any, error) {
				d := run.Decisions[i]
				return []any{run.ID, d.Seq, d.Identity, int64(d.At), d.Admitted, int64(d.Wait)}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to copy decisions: %w", err)
		}
		return nil
	})
}

// GetRun retrieves a run and its decisions by ID.
func (ps *PostgresJournal) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var run models.Run
	err := ps.pool.QueryRow(ctx,
		`SELECT id, algorithm, source, created_at FROM chatlimit_runs WHERE id = $1`, id,
	).Scan(&run.ID, &run.Algorithm, &run.Source, &run.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.CreatedAt = run.CreatedAt.UTC()

	if run.Decisions, err = ps.decisions(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns every run, newest first.
func (ps *PostgresJournal) ListRuns(ctx context.Context) ([]*models.Run, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT id, algorithm, source, created_at FROM chatlimit_runs ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Run, error) {
		var run models.Run
		if err := row.Scan(&run.ID, &run.Algorithm, &run.Source, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.CreatedAt = run.CreatedAt.UTC()
		return &run, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan runs: %w", err)
	}

	for _, run := range runs {
		if run.Decisions, err = ps.decisions(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (ps *PostgresJournal) decisions(ctx context.Context, runID string) ([]models.Decision, error) {
	rows, err := ps.pool.Query(ctx,
		`SELECT seq, identity, at_ns, admitted, wait_ns FROM chatlimit_decisions WHERE run_id = $1 ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}

	decisions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Decision, error) {
		var (
			d          models.Decision
			seq        int32
			atNs, wait int64
		)
		if err := row.Scan(&seq, &d.Identity, &atNs, &d.Admitted, &wait); err != nil {
			return d, err
		}
		d.Seq = int(seq)
		d.At = time.Duration(atNs)
		d.Wait = time.Duration(wait)
		return d, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan decisions: %w", err)
	}
	return decisions, nil
}

// Close closes the connection pool.
func (ps *PostgresJournal) Close() error {
	ps.pool.Close()
	return nil
}
