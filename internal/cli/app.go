package cli

import (
	"context"
	"io"
	"os"

	"github.com/liangyou/pyvm/internal/history"
	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/internal/venv"
	"github.com/liangyou/pyvm/internal/version"
	"github.com/liangyou/pyvm/pkg/models"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// CheckService 描述版本检查与本机解释器探测能力。
type CheckService interface {
	CheckLatest(ctx context.Context) (version.CheckResult, error)
	LocalInterpreter(ctx context.Context) (version.Interpreter, error)
}

// ListService 描述版本系列查询能力。
type ListService interface {
	ListAvailable(ctx context.Context, includeAll bool) ([]models.Release, error)
}

// InstallService 描述安装编排能力。preferred 为空串时沿用配置的后端顺序。
type InstallService interface {
	InstallPreferring(ctx context.Context, v pyver.Version, plat platform.Platform, preferred string) (models.InstallAttempt, error)
	Uninstall(ctx context.Context, v pyver.Version, plat platform.Platform) error
}

// RollbackService 描述回滚能力。
type RollbackService interface {
	Rollback(ctx context.Context) (history.Result, error)
}

// HistoryService 描述历史记录的只读视图。
type HistoryService interface {
	Entries() []models.HistoryEntry
}

// VenvService 描述虚拟环境管理能力。
type VenvService interface {
	Create(ctx context.Context, name, pythonVersion, path string, systemSite bool) (venv.Entry, error)
	List() ([]venv.Info, error)
	Remove(name string) error
}

// App 聚合 CLI 的全部依赖，供各子命令使用。
type App struct {
	Config     models.Config
	ConfigPath string
	Platform   platform.Platform

	Checker    CheckService
	Lister     ListService
	Installer  InstallService
	Rollbacker RollbackService
	History    HistoryService
	Venvs      VenvService

	Out io.Writer
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}
