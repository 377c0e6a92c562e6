package history

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/liangyou/pyvm/pkg/models"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// Uninstaller 抽象单个后端的卸载能力。
type Uninstaller interface {
	Uninstall(ctx context.Context, v pyver.Version) error
}

// Result 描述一次回滚的结果。Warning 非空表示卸载动作未能完成，
// 但记录已经移除，净效果与成功回滚一致。
type Result struct {
	Entry   models.HistoryEntry
	Warning string
}

// Engine 依据历史记录回滚最近一次安装。
type Engine struct {
	ledger       *Ledger
	uninstallers map[string]Uninstaller
	logger       *slog.Logger
}

// NewEngine 创建回滚引擎。uninstallers 以后端名称为键。
func NewEngine(ledger *Ledger, uninstallers map[string]Uninstaller, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		ledger:       ledger,
		uninstallers: uninstallers,
		logger:       logger,
	}
}

// Rollback 撤销最近一次安装。卸载失败视为可恢复：
// 记录仍会移除（该版本不再视为受管安装），并以警告形式返回。
func (e *Engine) Rollback(ctx context.Context) (Result, error) {
	entry, ok := e.ledger.Latest()
	if !ok {
		return Result{}, ErrNothingToRollback
	}
	result := Result{Entry: entry}

	v, err := pyver.Parse(entry.Version)
	if err != nil {
		result.Warning = fmt.Sprintf("history entry has malformed version %q, removing record only", entry.Version)
	} else if uninstaller, found := e.uninstallers[entry.Installer]; !found {
		result.Warning = fmt.Sprintf("unknown installer %q, removing record only", entry.Installer)
	} else if err := uninstaller.Uninstall(ctx, v); err != nil {
		result.Warning = fmt.Sprintf("uninstall via %s failed: %v", entry.Installer, err)
	}

	if result.Warning != "" {
		e.logger.Warn("rollback degraded", "version", entry.Version, "installer", entry.Installer, "detail", result.Warning)
	}

	if err := e.ledger.RemoveLatest(); err != nil {
		return result, fmt.Errorf("history: remove entry: %w", err)
	}
	return result, nil
}
