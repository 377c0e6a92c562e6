package installer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/pkg/models"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// platformOrder 是各平台的后端尝试顺序，运行期固定，
// 仅允许通过 preferred_installer 将某个后端提到最前。
var platformOrder = map[string][]string{
	"linux":   {"mise", "asdf", "pyenv", "conda", "apt", "source"},
	"darwin":  {"mise", "asdf", "pyenv", "conda", "brew"},
	"windows": {"mise", "conda", "official"},
}

// Ledger 记录成功完成的安装，供回滚使用。
type Ledger interface {
	Record(entry models.HistoryEntry) error
}

// OrchestratorOption 配置 Orchestrator。
type OrchestratorOption func(*Orchestrator)

// WithPreferred 指定优先尝试的后端名称，auto 表示遵循平台默认顺序。
func WithPreferred(name string) OrchestratorOption {
	return func(o *Orchestrator) {
		if name != "" && name != "auto" {
			o.preferred = name
		}
	}
}

// WithLogger 指定日志器。
func WithLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock 指定时间源，用于测试。
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// Orchestrator 按平台优先级依次尝试各安装后端，第一个成功者即终止。
type Orchestrator struct {
	strategies map[string]Strategy
	ledger     Ledger
	preferred  string
	now        func() time.Time
	logger     *slog.Logger
}

// NewOrchestrator 创建安装编排器。
func NewOrchestrator(strategies []Strategy, ledger Ledger, opts ...OrchestratorOption) *Orchestrator {
	byName := make(map[string]Strategy, len(strategies))
	for _, s := range strategies {
		byName[s.Name()] = s
	}
	o := &Orchestrator{
		strategies: byName,
		ledger:     ledger,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Install 为目标版本依序尝试各后端。成功后写入历史记录并立即返回；
// 全部失败时返回 NoInstallerError，其中保留每个后端的失败原因。
func (o *Orchestrator) Install(ctx context.Context, v pyver.Version, plat platform.Platform) (models.InstallAttempt, error) {
	return o.InstallPreferring(ctx, v, plat, "")
}

// InstallPreferring 与 Install 相同，但本次调用优先尝试 preferred 指定的后端，
// 空串或 auto 沿用配置的默认顺序。
func (o *Orchestrator) InstallPreferring(ctx context.Context, v pyver.Version, plat platform.Platform, preferred string) (models.InstallAttempt, error) {
	attempt := models.InstallAttempt{Version: v.String()}
	if v.IsZero() {
		return attempt, pyver.ErrInvalidVersion
	}

	for _, s := range o.orderedFor(plat, preferred) {
		if !s.Supports(plat) {
			attempt.Failures = append(attempt.Failures, models.StrategyFailure{
				Strategy: s.Name(),
				Err:      fmt.Errorf("installer: not supported on %s", plat.OS),
			})
			continue
		}
		if !s.Probe() {
			attempt.Failures = append(attempt.Failures, models.StrategyFailure{
				Strategy: s.Name(),
				Err:      ErrUnavailable,
			})
			continue
		}

		o.logger.Debug("trying install backend", "strategy", s.Name(), "version", v.String())
		if err := s.Install(ctx, v); err != nil {
			o.logger.Warn("install backend failed", "strategy", s.Name(), "error", err)
			attempt.Failures = append(attempt.Failures, models.StrategyFailure{
				Strategy: s.Name(),
				Err:      err,
			})
			continue
		}

		attempt.Strategy = s.Name()
		attempt.Success = true

		// 外部安装进程已确认退出，此刻才允许落历史。
		entry := models.HistoryEntry{
			Version:     v.String(),
			Installer:   s.Name(),
			Timestamp:   o.now().UTC(),
			InstallPath: s.InstallLocation(v),
		}
		if err := o.ledger.Record(entry); err != nil {
			o.logger.Warn("failed to record install history", "error", err)
		}
		return attempt, nil
	}

	return attempt, &NoInstallerError{Failures: attempt.Failures}
}

// Uninstall 依平台顺序尝试各后端卸载指定版本，第一个成功者即终止。
func (o *Orchestrator) Uninstall(ctx context.Context, v pyver.Version, plat platform.Platform) error {
	if v.IsZero() {
		return pyver.ErrInvalidVersion
	}

	var failures []models.StrategyFailure
	for _, s := range o.orderedFor(plat, "") {
		if !s.Supports(plat) || !s.Probe() {
			continue
		}
		if err := s.Uninstall(ctx, v); err != nil {
			failures = append(failures, models.StrategyFailure{Strategy: s.Name(), Err: err})
			continue
		}
		return nil
	}
	return &NoInstallerError{Failures: failures}
}

func (o *Orchestrator) orderedFor(plat platform.Platform, override string) []Strategy {
	preferred := o.preferred
	if override != "" && override != "auto" {
		preferred = override
	}

	names := platformOrder[plat.OS]
	ordered := make([]Strategy, 0, len(names))

	if preferred != "" {
		if s, ok := o.strategies[preferred]; ok {
			ordered = append(ordered, s)
		} else {
			o.logger.Warn("preferred installer is unknown, falling back to platform order", "preferred", preferred)
		}
	}

	for _, name := range names {
		if name == preferred && len(ordered) > 0 {
			continue
		}
		if s, ok := o.strategies[name]; ok {
			ordered = append(ordered, s)
		}
	}
	return ordered
}

// DefaultStrategies 构造内置后端集合。
func DefaultStrategies(runner Runner, downloader Fetcher, verifier FileVerifier, plat platform.Platform, verifyChecksum bool) []Strategy {
	return []Strategy{
		NewMiseStrategy(runner),
		NewAsdfStrategy(runner),
		NewPyenvStrategy(runner),
		NewCondaStrategy(runner),
		NewBrewStrategy(runner),
		NewAptStrategy(runner),
		NewOfficialStrategy(runner, downloader, verifier, plat, verifyChecksum),
		NewSourceStrategy(runner, downloader, verifier, verifyChecksum),
	}
}
