package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/liangyou/pyvm/pkg/models"
)

// maxEntries 是历史记录的容量上限，超出后淘汰最旧的一条。
const maxEntries = 10

// ErrNothingToRollback 表示历史为空，没有可回滚的安装。
var ErrNothingToRollback = errors.New("history: nothing to roll back")

// DefaultPath 返回历史文件的固定位置 ~/.pyvm_history.json。
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".pyvm_history.json"), nil
}

// Ledger 维护容量固定的安装历史记录。启动时全量读入内存，
// 每次变更通过临时文件加重命名原子化落盘。
type Ledger struct {
	path   string
	logger *slog.Logger

	mu      sync.Mutex
	entries []models.HistoryEntry
}

// Open 加载历史文件。文件不存在等价于空历史；
// 文件损坏同样降级为空历史，仅输出警告，不阻断任何操作。
func Open(path string, logger *slog.Logger) (*Ledger, error) {
	if path == "" {
		return nil, errors.New("history: path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	l := &Ledger{path: path, logger: logger}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return l, nil
		}
		return nil, fmt.Errorf("history: read file: %w", err)
	}
	if len(data) == 0 {
		return l, nil
	}

	var entries []models.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("history file is corrupt, starting with empty history", "path", path, "error", err)
		return l, nil
	}

	if len(entries) > maxEntries {
		entries = entries[len(entries)-maxEntries:]
	}
	l.entries = entries
	return l, nil
}

// Record 追加一条记录，超出容量时淘汰最旧的一条，随后立即落盘。
func (l *Ledger) Record(entry models.HistoryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)
	if len(l.entries) > maxEntries {
		l.entries = l.entries[len(l.entries)-maxEntries:]
	}
	return l.writeLocked()
}

// Latest 返回最近一条记录。
func (l *Ledger) Latest() (models.HistoryEntry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return models.HistoryEntry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// RemoveLatest 删除最近一条记录并落盘。
func (l *Ledger) RemoveLatest() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return ErrNothingToRollback
	}
	l.entries = l.entries[:len(l.entries)-1]
	return l.writeLocked()
}

// Entries 返回全部记录的副本，最旧在前。
func (l *Ledger) Entries() []models.HistoryEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	clone := make([]models.HistoryEntry, len(l.entries))
	copy(clone, l.entries)
	return clone
}

func (l *Ledger) writeLocked() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("history: encode: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: prepare dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".pyvm_history-*.tmp")
	if err != nil {
		return fmt.Errorf("history: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("history: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("history: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		return fmt.Errorf("history: replace file: %w", err)
	}
	return nil
}
