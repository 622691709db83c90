package journal

import (
	"fmt"

	"chatlimit/internal/models"
)

// New creates a journal backend from cfg.
// Supported types:
//   - memory: process-local, lost on exit
//   - json: a single JSON file at cfg.Path
//   - sqlite: a SQLite database at cfg.DSN
//   - postgres: a PostgreSQL database reached through cfg.DSN
func New(cfg models.JournalConfig) (Journal, error) {
	var (
		j   Journal
		err error
	)

	switch cfg.Type {
	case models.JournalTypeMemory:
		return NewMemoryJournal(), nil
	case models.JournalTypeJSON:
		j, err = NewJSONJournal(cfg.Path)
	case models.JournalTypeSQLite:
		j, err = NewSQLiteJournal(cfg.DSN)
	case models.JournalTypePostgres:
		j, err = NewPostgresJournal(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported journal type: %s", cfg.Type)
	}

	if err != nil {
		return nil, err
	}
	return j, nil
}

// SupportedTypes returns every journal type New accepts.
func SupportedTypes() []string {
	return []string{
		models.JournalTypeMemory,
		models.JournalTypeJSON,
		models.JournalTypeSQLite,
		models.JournalTypePostgres,
	}
}
