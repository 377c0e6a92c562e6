package history

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangyou/pyvm/pkg/models"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func tempLedgerPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), ".pyvm_history.json")
}

func entryFor(version string) models.HistoryEntry {
	return models.HistoryEntry{
		Version:   version,
		Installer: "pyenv",
		Timestamp: time.Date(2026, time.February, 10, 8, 0, 0, 0, time.UTC),
	}
}

func TestOpenMissingFileMeansEmptyHistory(t *testing.T) {
	t.Parallel()

	l, err := Open(tempLedgerPath(t), quietLogger())
	require.NoError(t, err)
	assert.Empty(t, l.Entries())

	_, ok := l.Latest()
	assert.False(t, ok)
}

func TestOpenEmptyPathRejected(t *testing.T) {
	t.Parallel()

	_, err := Open("", quietLogger())
	require.Error(t, err)
}

func TestRecordPersistsAcrossReopen(t *testing.T) {
	t.Parallel()

	path := tempLedgerPath(t)

	l, err := Open(path, quietLogger())
	require.NoError(t, err)
	require.NoError(t, l.Record(entryFor("3.11.9")))
	require.NoError(t, l.Record(entryFor("3.12.8")))

	reopened, err := Open(path, quietLogger())
	require.NoError(t, err)

	entries := reopened.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "3.11.9", entries[0].Version)
	assert.Equal(t, "3.12.8", entries[1].Version)

	latest, ok := reopened.Latest()
	require.True(t, ok)
	assert.Equal(t, "3.12.8", latest.Version)
}

func TestRecordEvictsOldestBeyondCapacity(t *testing.T) {
	t.Parallel()

	path := tempLedgerPath(t)
	l, err := Open(path, quietLogger())
	require.NoError(t, err)

	for i := 0; i < maxEntries+3; i++ {
		require.NoError(t, l.Record(entryFor(fmt.Sprintf("3.12.%d", i))))
	}

	entries := l.Entries()
	require.Len(t, entries, maxEntries)
	// 最旧的三条已被淘汰。
	assert.Equal(t, "3.12.3", entries[0].Version)
	assert.Equal(t, fmt.Sprintf("3.12.%d", maxEntries+2), entries[maxEntries-1].Version)
}

func TestOpenCorruptFileDegradesToEmpty(t *testing.T) {
	t.Parallel()

	path := tempLedgerPath(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	l, err := Open(path, quietLogger())
	require.NoError(t, err)
	assert.Empty(t, l.Entries())

	// 损坏状态不阻断后续写入。
	require.NoError(t, l.Record(entryFor("3.12.8")))
	assert.Len(t, l.Entries(), 1)
}

func TestOpenTrimsOversizedFile(t *testing.T) {
	t.Parallel()

	path := tempLedgerPath(t)
	var entries []models.HistoryEntry
	for i := 0; i < maxEntries+5; i++ {
		entries = append(entries, entryFor(fmt.Sprintf("3.10.%d", i)))
	}
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	l, err := Open(path, quietLogger())
	require.NoError(t, err)

	loaded := l.Entries()
	require.Len(t, loaded, maxEntries)
	assert.Equal(t, "3.10.5", loaded[0].Version)
}

func TestRemoveLatest(t *testing.T) {
	t.Parallel()

	path := tempLedgerPath(t)
	l, err := Open(path, quietLogger())
	require.NoError(t, err)

	assert.ErrorIs(t, l.RemoveLatest(), ErrNothingToRollback)

	require.NoError(t, l.Record(entryFor("3.11.9")))
	require.NoError(t, l.Record(entryFor("3.12.8")))
	require.NoError(t, l.RemoveLatest())

	entries := l.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "3.11.9", entries[0].Version)

	// 删除同样立即落盘。
	reopened, err := Open(path, quietLogger())
	require.NoError(t, err)
	assert.Len(t, reopened.Entries(), 1)
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, ".pyvm_history.json")
	l, err := Open(path, quietLogger())
	require.NoError(t, err)
	require.NoError(t, l.Record(entryFor("3.12.8")))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, ".pyvm_history.json", files[0].Name())
}

func TestHistoryEntryJSONShape(t *testing.T) {
	t.Parallel()

	path := tempLedgerPath(t)
	l, err := Open(path, quietLogger())
	require.NoError(t, err)

	entry := models.HistoryEntry{
		Version:     "3.12.8",
		Installer:   "mise",
		Timestamp:   time.Date(2026, time.February, 10, 8, 0, 0, 0, time.UTC),
		InstallPath: "/home/u/.local/share/mise/installs/python/3.12.8",
	}
	require.NoError(t, l.Record(entry))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 1)
	assert.Equal(t, "3.12.8", raw[0]["version"])
	assert.Equal(t, "mise", raw[0]["installer"])
	assert.Contains(t, raw[0], "timestamp")
	assert.Contains(t, raw[0], "install_path")
}
