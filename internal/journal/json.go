package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"chatlimit/internal/models"
)

// JSONJournal stores every run in a single JSON file. The file is rewritten
// on each save and re-read when another process has modified it.
type JSONJournal struct {
	filePath     string
	mu           sync.RWMutex
	data         *JSONData
	lastModified time.Time
}

// JSONData is the on-disk layout of a JSON journal.
type JSONData struct {
	Runs        []*models.Run `json:"runs"`
	LastUpdated time.Time     `json:"last_updated"`
}

// NewJSONJournal opens the journal at path, creating it when missing.
func NewJSONJournal(path string) (*JSONJournal, error) {
	if path == "" {
		return nil, fmt.Errorf("path is required for JSON journal")
	}

	j := &JSONJournal{filePath: path}

	if err := j.ensureFileExists(); err != nil {
		return nil, fmt.Errorf("failed to ensure file exists: %w", err)
	}

	if err := j.loadData(); err != nil {
		return nil, fmt.Errorf("failed to load initial data: %w", err)
	}

	return j, nil
}

// ensureFileExists creates the JSON file with empty data if it doesn't exist
func (j *JSONJournal) ensureFileExists() error {
	if _, err := os.Stat(j.filePath); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(j.filePath), 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		return j.saveData(&JSONData{Runs: []*models.Run{}})
	}
	return nil
}

// loadData re-reads the file when its modification time moved past the
// last load.
func (j *JSONJournal) loadData() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.loadDataLocked()
}

func (j *JSONJournal) loadDataLocked() error {
	info, err := os.Stat(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}

	if j.data != nil && !info.ModTime().After(j.lastModified) {
		return nil
	}

	fileData, err := os.ReadFile(j.filePath)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var data JSONData
	if err := json.Unmarshal(fileData, &data); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	j.data = &data
	j.lastModified = info.ModTime()
	return nil
}

// saveData writes data to a temporary file and renames it over the journal.
func (j *JSONJournal) saveData(data *JSONData) error {
	data.LastUpdated = time.Now().UTC()

	fileData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	tmp := j.filePath + ".tmp"
	if err := os.WriteFile(tmp, fileData, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, j.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace file: %w", err)
	}

	if info, err := os.Stat(j.filePath); err == nil {
		j.lastModified = info.ModTime()
	}
	return nil
}

// SaveRun stores run, replacing any run with the same ID.
func (j *JSONJournal) SaveRun(ctx context.Context, run *models.Run) error {
	if err := validateRun(run); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.loadDataLocked(); err != nil {
		return err
	}

	runs := make([]*models.Run, 0, len(j.data.Runs)+1)
	for _, existing := range j.data.Runs {
		if existing.ID != run.ID {
			runs = append(runs, existing)
		}
	}
	runs = append(runs, cloneRun(run))

	next := &JSONData{Runs: runs}
	if err := j.saveData(next); err != nil {
		return err
	}
	j.data = next
	return nil
}

// GetRun retrieves a run by ID.
func (j *JSONJournal) GetRun(ctx context.Context, id string) (*models.Run, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	for _, run := range j.data.Runs {
		if run.ID == id {
			return cloneRun(run), nil
		}
	}
	return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
}

// ListRuns returns every run, newest first.
func (j *JSONJournal) ListRuns(ctx context.Context) ([]*models.Run, error) {
	if err := j.loadData(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	runs := make([]*models.Run, 0, len(j.data.Runs))
	for _, run := range j.data.Runs {
		runs = append(runs, cloneRun(run))
	}
	sortRuns(runs)
	return runs, nil
}

// Close is a no-op; every save is already on disk.
func (j *JSONJournal) Close() error {
	return nil
}
