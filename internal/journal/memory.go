package journal

import (
	"context"
	"fmt"
	"sync"

	"chatlimit/internal/models"
)

// MemoryJournal keeps runs in a map. Data is lost when the process exits.
type MemoryJournal struct {
	mu   sync.RWMutex
	runs map[string]*models.Run
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{runs: make(map[string]*models.Run)}
}

// SaveRun stores a copy of run.
func (m *MemoryJournal) SaveRun(ctx context.Context, run *models.Run) error {
	if err := validateRun(run); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun returns a copy of the stored run.
func (m *MemoryJournal) GetRun(ctx context.Context, id string) (*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
	}
	return cloneRun(run), nil
}

// ListRuns returns copies of every run, newest first.
func (m *MemoryJournal) ListRuns(ctx context.Context) ([]*models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]*models.Run, 0, len(m.runs))
	for _, run := range m.runs {
		runs = append(runs, cloneRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

// Close is a no-op.
func (m *MemoryJournal) Close() error {
	return nil
}
