package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"chatlimit/internal/models"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS chatlimit_runs (
		id         TEXT PRIMARY KEY,
		algorithm  TEXT NOT NULL,
		source     TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chatlimit_decisions (
		run_id   TEXT NOT NULL,
		seq      INTEGER NOT NULL,
		identity TEXT NOT NULL,
		at_ns    INTEGER NOT NULL,
		admitted INTEGER NOT NULL,
		wait_ns  INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chatlimit_runs_created_at ON chatlimit_runs (created_at)`,
}

// SQLiteJournal stores runs in a SQLite database using the pure-Go modernc
// driver.
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens the database at dsn and creates the schema.
func NewSQLiteJournal(dsn string) (*SQLiteJournal, error) {
	if dsn == "" {
		return nil, fmt.Errorf("connection string is required for SQLite journal")
	}

	if err := ensureDatabaseDir(dsn); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteJournal{db: db}, nil
}

// ensureDatabaseDir creates the parent directory of a file DSN. In-memory
// databases and file: URIs are left to the driver.
func ensureDatabaseDir(dsn string) error {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return nil
	}
	path, _, _ := strings.Cut(dsn, "?")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}

// SaveRun replaces the run and its decisions in one transaction.
func (s *SQLiteJournal) SaveRun(ctx context.Context, run *models.Run) error {
	if err := validateRun(run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chatlimit_decisions WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("failed to clear decisions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO chatlimit_runs (id, algorithm, source, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Algorithm, run.Source, run.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chatlimit_decisions (run_id, seq, identity, at_ns, admitted, wait_ns) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare decision insert: %w", err)
	}
	defer stmt.Close()

	for _, d := range run.Decisions {
		if _, err := stmt.ExecContext(ctx, run.ID, d.Seq, d.Identity, int64(d.At), d.Admitted, int64(d.Wait)); err != nil {
			return fmt.Errorf("failed to save decision %d: %w", d.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// GetRun retrieves a run and its decisions by ID.
func (s *SQLiteJournal) GetRun(ctx context.Context, id string) (*models.Run, error) {
	var (
		run       models.Run
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, algorithm, source, created_at FROM chatlimit_runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Algorithm, &run.Source, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	run.CreatedAt = time.Unix(0, createdAt).UTC()

	if run.Decisions, err = s.decisions(ctx, id); err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns every run, newest first.
func (s *SQLiteJournal) ListRuns(ctx context.Context) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, algorithm, source, created_at FROM chatlimit_runs ORDER BY created_at DESC, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var runs []*models.Run
	for rows.Next() {
		var (
			run       models.Run
			createdAt int64
		)
		if err := rows.Scan(&run.ID, &run.Algorithm, &run.Source, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.CreatedAt = time.Unix(0, createdAt).UTC()
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	// The single connection must be released before loading decisions.
	rows.Close()

	for _, run := range runs {
		if run.Decisions, err = s.decisions(ctx, run.ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLiteJournal) decisions(ctx context.Context, runID string) ([]models.Decision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, identity, at_ns, admitted, wait_ns FROM chatlimit_decisions WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get decisions: %w", err)
	}
	defer rows.Close()

	decisions := []models.Decision{}
	for rows.Next() {
		var (
			d          models.Decision
			atNs, wait int64
		)
		if err := rows.Scan(&d.Seq, &d.Identity, &atNs, &d.Admitted, &wait); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.At = time.Duration(atNs)
		d.Wait = time.Duration(wait)
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return decisions, nil
}

// Close closes the database.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}
