// Package journal stores completed replay runs so they can be listed and
// inspected later. It never holds limiter state; a restarted process always
// begins with fresh limiters.
package journal

import (
	"context"
	"errors"
	"sort"

	"chatlimit/internal/models"
)

// ErrRunNotFound is returned by GetRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

// ErrInvalidRun is returned by SaveRun for a nil run or a run without an ID.
var ErrInvalidRun = errors.New("invalid run")

// Journal defines the interface for run persistence. Implementations must be
// safe for concurrent use.
type Journal interface {
	// SaveRun stores run, replacing any run with the same ID
	SaveRun(ctx context.Context, run *models.Run) error

	// GetRun retrieves a run and its decisions by ID
	GetRun(ctx context.Context, id string) (*models.Run, error)

	// ListRuns returns every stored run, newest first
	ListRuns(ctx context.Context) ([]*models.Run, error)

	// Close releases the backend's resources
	Close() error
}

func validateRun(run *models.Run) error {
	if run == nil || run.ID == "" {
		return ErrInvalidRun
	}
	return nil
}

// cloneRun copies run deeply enough that callers cannot mutate stored state.
func cloneRun(run *models.Run) *models.Run {
	c := *run
	c.Decisions = make([]models.Decision, len(run.Decisions))
	copy(c.Decisions, run.Decisions)
	return &c
}

// sortRuns orders runs newest first, breaking ties by ID.
func sortRuns(runs []*models.Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
}
