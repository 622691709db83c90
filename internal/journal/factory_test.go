package journal

import (
	"path/filepath"
	"testing"

	"chatlimit/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		config   models.JournalConfig
		wantType any
	}{
		{
			name:     "memory",
			config:   models.JournalConfig{Type: models.JournalTypeMemory},
			wantType: &MemoryJournal{},
		},
		{
			name:     "json",
			config:   models.JournalConfig{Type: models.JournalTypeJSON, Path: filepath.Join(dir, "runs.json")},
			wantType: &JSONJournal{},
		},
		{
			name:     "sqlite",
			config:   models.JournalConfig{Type: models.JournalTypeSQLite, DSN: filepath.Join(dir, "runs.db")},
			wantType: &SQLiteJournal{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := New(tt.config)
			require.NoError(t, err)
			defer j.Close()
			assert.IsType(t, tt.wantType, j)
		})
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		config models.JournalConfig
	}{
		{name: "unsupported type", config: models.JournalConfig{Type: "redis"}},
		{name: "json without path", config: models.JournalConfig{Type: models.JournalTypeJSON}},
		{name: "sqlite without dsn", config: models.JournalConfig{Type: models.JournalTypeSQLite}},
		{name: "postgres without dsn", config: models.JournalConfig{Type: models.JournalTypePostgres}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j, err := New(tt.config)
			assert.Error(t, err)
			assert.Nil(t, j)
		})
	}
}

func TestSupportedTypes(t *testing.T) {
	assert.ElementsMatch(t, []string{"memory", "json", "sqlite", "postgres"}, SupportedTypes())
}
