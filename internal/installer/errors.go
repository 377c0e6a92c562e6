package installer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/liangyou/pyvm/pkg/models"
)

var (
	// ErrUnavailable 表示后端依赖的外部工具不在 PATH 上。
	ErrUnavailable = errors.New("installer: tool not available")
	// ErrUnsupportedVersion 表示上游没有该版本对应的工件或包。
	ErrUnsupportedVersion = errors.New("installer: version not available for this backend")
	// ErrUnsafeInstall 表示后端无法保证并行安装、可能改写系统默认解释器。
	// 这种情况一律拒绝执行，绝不冒险。
	ErrUnsafeInstall = errors.New("installer: backend cannot guarantee a side-by-side install")
	// ErrUninstallUnsupported 表示该后端不提供自动卸载能力。
	ErrUninstallUnsupported = errors.New("installer: automated removal is not supported by this backend")
)

// ExternalToolError 表示外部安装工具以非零状态退出。
type ExternalToolError struct {
	Tool string
	Code int
}

func (e *ExternalToolError) Error() string {
	return fmt.Sprintf("installer: %s exited with code %d", e.Tool, e.Code)
}

// NoInstallerError 聚合一次安装尝试中所有后端的失败原因，
// 供调用方输出完整诊断而不是只看到最后一个错误。
type NoInstallerError struct {
	Failures []models.StrategyFailure
}

func (e *NoInstallerError) Error() string {
	if len(e.Failures) == 0 {
		return "installer: no installer available"
	}
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s: %v", f.Strategy, f.Err))
	}
	return "installer: no installer available (" + strings.Join(parts, "; ") + ")"
}
