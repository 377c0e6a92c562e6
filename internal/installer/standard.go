package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/pkg/pyver"
)

func userHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

// MiseStrategy 通过 mise-en-place 安装，版本之间天然并行共存。
type MiseStrategy struct {
	toolProbe
	home string
}

// NewMiseStrategy 创建 mise 后端。
func NewMiseStrategy(runner Runner) *MiseStrategy {
	return &MiseStrategy{
		toolProbe: toolProbe{runner: runner, tool: "mise"},
		home:      userHome(),
	}
}

func (s *MiseStrategy) Name() string                    { return "mise" }
func (s *MiseStrategy) Priority() int                   { return 100 }
func (s *MiseStrategy) Supports(platform.Platform) bool { return true }

// Install 执行 mise install python@<version>。
func (s *MiseStrategy) Install(ctx context.Context, v pyver.Version) error {
	return s.runner.Run(ctx, "mise", "install", "python@"+v.String())
}

// Uninstall 执行 mise uninstall python@<version>。
func (s *MiseStrategy) Uninstall(ctx context.Context, v pyver.Version) error {
	return s.runner.Run(ctx, "mise", "uninstall", "python@"+v.String())
}

// InstallLocation 返回 mise 的版本安装目录。
func (s *MiseStrategy) InstallLocation(v pyver.Version) string {
	if s.home == "" {
		return ""
	}
	return filepath.Join(s.home, ".local", "share", "mise", "installs", "python", v.String())
}

// AsdfStrategy 通过 asdf 及其 python 插件安装。
type AsdfStrategy struct {
	toolProbe
	home string
}

// NewAsdfStrategy 创建 asdf 后端。
func NewAsdfStrategy(runner Runner) *AsdfStrategy {
	return &AsdfStrategy{
		toolProbe: toolProbe{runner: runner, tool: "asdf"},
		home:      userHome(),
	}
}

func (s *AsdfStrategy) Name() string                    { return "asdf" }
func (s *AsdfStrategy) Priority() int                   { return 95 }
func (s *AsdfStrategy) Supports(platform.Platform) bool { return true }

// Install 先确保 python 插件存在，再执行 asdf install python <version>。
// 插件可能已经安装，添加失败不影响后续流程。
func (s *AsdfStrategy) Install(ctx context.Context, v pyver.Version) error {
	_ = s.runner.Run(ctx, "asdf", "plugin", "add", "python")
	return s.runner.Run(ctx, "asdf", "install", "python", v.String())
}

// Uninstall 执行 asdf uninstall python <version>。
func (s *AsdfStrategy) Uninstall(ctx context.Context, v pyver.Version) error {
	return s.runner.Run(ctx, "asdf", "uninstall", "python", v.String())
}

// InstallLocation 返回 asdf 的版本安装目录。
func (s *AsdfStrategy) InstallLocation(v pyver.Version) string {
	if s.home == "" {
		return ""
	}
	return filepath.Join(s.home, ".asdf", "installs", "python", v.String())
}

// PyenvStrategy 通过 pyenv 安装，所有版本位于 PYENV_ROOT 之下。
type PyenvStrategy struct {
	toolProbe
	root string
}

// NewPyenvStrategy 创建 pyenv 后端。
func NewPyenvStrategy(runner Runner) *PyenvStrategy {
	root := os.Getenv("PYENV_ROOT")
	if root == "" {
		if home := userHome(); home != "" {
			root = filepath.Join(home, ".pyenv")
		}
	}
	return &PyenvStrategy{
		toolProbe: toolProbe{runner: runner, tool: "pyenv"},
		root:      root,
	}
}

func (s *PyenvStrategy) Name() string                    { return "pyenv" }
func (s *PyenvStrategy) Priority() int                   { return 90 }
func (s *PyenvStrategy) Supports(platform.Platform) bool { return true }

// Install 执行 pyenv install -s <version>，-s 跳过已存在的版本。
func (s *PyenvStrategy) Install(ctx context.Context, v pyver.Version) error {
	return s.runner.Run(ctx, "pyenv", "install", "-s", v.String())
}

// Uninstall 执行 pyenv uninstall -f <version>。
func (s *PyenvStrategy) Uninstall(ctx context.Context, v pyver.Version) error {
	return s.runner.Run(ctx, "pyenv", "uninstall", "-f", v.String())
}

// InstallLocation 返回 pyenv 的版本安装目录。
func (s *PyenvStrategy) InstallLocation(v pyver.Version) string {
	if s.root == "" {
		return ""
	}
	return filepath.Join(s.root, "versions", v.String())
}

// CondaStrategy 通过 conda 或 mamba 在独立环境 pyvm-<version> 中安装，
// 不触碰任何系统解释器。
type CondaStrategy struct {
	runner Runner

	probeOnce sync.Once
	exe       string
}

// NewCondaStrategy 创建 conda 后端。
func NewCondaStrategy(runner Runner) *CondaStrategy {
	return &CondaStrategy{runner: runner}
}

func (s *CondaStrategy) Name() string                    { return "conda" }
func (s *CondaStrategy) Priority() int                   { return 85 }
func (s *CondaStrategy) Supports(platform.Platform) bool { return true }

// Probe 依次探测 mamba 与 conda，记住找到的可执行文件。
func (s *CondaStrategy) Probe() bool {
	s.probeOnce.Do(func() {
		for _, candidate := range []string{"mamba", "conda"} {
			if _, err := s.runner.LookPath(candidate); err == nil {
				s.exe = candidate
				return
			}
		}
	})
	return s.exe != ""
}

func (s *CondaStrategy) envName(v pyver.Version) string {
	return "pyvm-" + v.String()
}

// Install 创建环境 pyvm-<version> 并在其中安装指定解释器。
func (s *CondaStrategy) Install(ctx context.Context, v pyver.Version) error {
	if !s.Probe() {
		return ErrUnavailable
	}
	return s.runner.Run(ctx, s.exe, "create", "-y", "-n", s.envName(v), "python="+v.String())
}

// Uninstall 删除对应环境。
func (s *CondaStrategy) Uninstall(ctx context.Context, v pyver.Version) error {
	if !s.Probe() {
		return ErrUnavailable
	}
	return s.runner.Run(ctx, s.exe, "env", "remove", "-y", "-n", s.envName(v))
}

// InstallLocation 返回空串，环境的实际路径由 conda 自行管理。
func (s *CondaStrategy) InstallLocation(pyver.Version) string { return "" }

// BrewStrategy 通过 Homebrew 安装 python@<series>，仅适用于 macOS。
// Homebrew 按系列打包，补丁版本由上游决定。
type BrewStrategy struct {
	toolProbe
}

// NewBrewStrategy 创建 Homebrew 后端。
func NewBrewStrategy(runner Runner) *BrewStrategy {
	return &BrewStrategy{toolProbe: toolProbe{runner: runner, tool: "brew"}}
}

func (s *BrewStrategy) Name() string  { return "brew" }
func (s *BrewStrategy) Priority() int { return 80 }

func (s *BrewStrategy) Supports(p platform.Platform) bool {
	return p.OS == "darwin"
}

// Install 执行 brew install python@<series>。
func (s *BrewStrategy) Install(ctx context.Context, v pyver.Version) error {
	return s.runner.Run(ctx, "brew", "install", "python@"+v.Series())
}

// Uninstall 先确认软件包存在，再执行 brew uninstall。
func (s *BrewStrategy) Uninstall(ctx context.Context, v pyver.Version) error {
	pkg := "python@" + v.Series()
	if _, err := s.runner.Output(ctx, "brew", "list", pkg); err != nil {
		return fmt.Errorf("installer: formula %s is not installed: %w", pkg, err)
	}
	return s.runner.Run(ctx, "brew", "uninstall", pkg)
}

// InstallLocation 返回空串，实际路径取决于 brew --prefix。
func (s *BrewStrategy) InstallLocation(pyver.Version) string { return "" }

// AptStrategy 通过 apt 与 deadsnakes PPA 安装 python<series>，
// 软件包彼此独立，不会改写 python3 的指向。仅适用于 Linux。
type AptStrategy struct {
	toolProbe
	stat func(string) (os.FileInfo, error)
}

// NewAptStrategy 创建 apt 后端。
func NewAptStrategy(runner Runner) *AptStrategy {
	return &AptStrategy{
		toolProbe: toolProbe{runner: runner, tool: "apt"},
		stat:      os.Stat,
	}
}

func (s *AptStrategy) Name() string  { return "apt" }
func (s *AptStrategy) Priority() int { return 70 }

func (s *AptStrategy) Supports(p platform.Platform) bool {
	return p.OS == "linux"
}

func (s *AptStrategy) sudoPrefix() []string {
	if _, err := s.runner.LookPath("sudo"); err == nil {
		return []string{"sudo"}
	}
	return nil
}

// Install 注册 deadsnakes PPA 并安装 python<series> 与配套组件。
func (s *AptStrategy) Install(ctx context.Context, v pyver.Version) error {
	series := v.Series()
	sudo := s.sudoPrefix()

	commands := [][]string{
		append(sudo, "apt", "update"),
		append(sudo, "apt", "install", "-y", "software-properties-common"),
		append(sudo, "add-apt-repository", "-y", "ppa:deadsnakes/ppa"),
		append(sudo, "apt", "update"),
		append(sudo, "apt", "install", "-y", "python"+series, "python"+series+"-venv"),
	}
	for _, cmd := range commands {
		if err := s.runner.Run(ctx, cmd[0], cmd[1:]...); err != nil {
			return fmt.Errorf("installer: apt step %q: %w", strings.Join(cmd, " "), err)
		}
	}

	binPath := s.InstallLocation(v)
	if _, err := s.stat(binPath); err != nil {
		return fmt.Errorf("installer: apt finished but %s is missing: %w", binPath, err)
	}
	return nil
}

// Uninstall 拒绝自动卸载：移除 deadsnakes 软件包可能连带破坏依赖它的系统组件。
func (s *AptStrategy) Uninstall(context.Context, pyver.Version) error {
	return ErrUninstallUnsupported
}

// InstallLocation 返回 apt 安装的解释器路径。
func (s *AptStrategy) InstallLocation(v pyver.Version) string {
	return "/usr/bin/python" + v.Series()
}
