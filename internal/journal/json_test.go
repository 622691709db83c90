package journal

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONJournal(t *testing.T) {
	j, err := NewJSONJournal(filepath.Join(t.TempDir(), "runs.json"))
	require.NoError(t, err)
	defer j.Close()
	testJournal(t, j)
}

func TestJSONJournal_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "runs.json")

	_, err := NewJSONJournal(path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"runs": []`)
}

func TestJSONJournal_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	ctx := context.Background()

	first, err := NewJSONJournal(path)
	require.NoError(t, err)
	run := newTestRun(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, first.SaveRun(ctx, run))
	require.NoError(t, first.Close())

	second, err := NewJSONJournal(path)
	require.NoError(t, err)
	got, err := second.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assertRunEqual(t, run, got)
}

func TestJSONJournal_EmptyPath(t *testing.T) {
	_, err := NewJSONJournal("")
	assert.Error(t, err)
}

func TestJSONJournal_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewJSONJournal(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal JSON")
}
