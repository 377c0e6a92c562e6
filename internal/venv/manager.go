package venv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/liangyou/pyvm/internal/platform"
)

var (
	// ErrExists 表示同名环境或目标路径已经存在。
	ErrExists = errors.New("venv: environment already exists")
	// ErrNotFound 表示请求的环境既没有登记也不在默认目录下。
	ErrNotFound = errors.New("venv: environment not found")
	// ErrPythonNotFound 表示找不到能创建该环境的解释器。
	ErrPythonNotFound = errors.New("venv: no matching python interpreter")
)

// Runner 描述创建虚拟环境所需的最小命令执行能力。
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// Entry 是注册表中一个虚拟环境的持久化记录。
type Entry struct {
	Path          string `json:"path"`
	PythonVersion string `json:"python_version"`
	PythonExe     string `json:"python_executable"`
	SystemSite    bool   `json:"system_site_packages"`
}

// Info 是列表视图中的一行。未登记但位于默认目录下的环境
// 也会出现在列表里，Registered 为 false。
type Info struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	PythonVersion string `json:"python_version"`
	Registered    bool   `json:"registered"`
	Exists        bool   `json:"exists"`
}

// DefaultDir 返回虚拟环境的默认存放目录 ~/.pyvm/venvs。
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("venv: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".pyvm", "venvs"), nil
}

// DefaultRegistryPath 返回注册表文件的固定位置 ~/.pyvm/venvs.json。
func DefaultRegistryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("venv: resolve home dir: %w", err)
	}
	return filepath.Join(home, ".pyvm", "venvs.json"), nil
}

// Manager 管理虚拟环境目录与注册表。注册表是 name 到 Entry 的
// JSON 映射，每次变更通过临时文件加重命名原子化落盘。
type Manager struct {
	dir      string
	registry string
	runner   Runner
	plat     platform.Platform
	logger   *slog.Logger
	home     string

	mu sync.Mutex
}

// NewManager 创建虚拟环境管理器。
func NewManager(dir, registry string, runner Runner, plat platform.Platform, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	home, _ := os.UserHomeDir()
	return &Manager{
		dir:      dir,
		registry: registry,
		runner:   runner,
		plat:     plat,
		logger:   logger,
		home:     home,
	}
}

// Create 为指定 Python 版本创建名为 name 的虚拟环境并登记。
// customPath 为空时环境放在默认目录下；pythonVersion 为空时
// 使用本机默认解释器。
func (m *Manager) Create(ctx context.Context, name, pythonVersion, customPath string, systemSite bool) (Entry, error) {
	if name == "" {
		return Entry{}, errors.New("venv: name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry()
	if err != nil {
		return Entry{}, err
	}
	if _, ok := reg[name]; ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrExists, name)
	}

	path := customPath
	if path == "" {
		path = filepath.Join(m.dir, name)
	}
	if _, err := os.Stat(path); err == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrExists, path)
	}

	exe, resolved, err := m.findPython(ctx, pythonVersion)
	if err != nil {
		return Entry{}, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return Entry{}, fmt.Errorf("venv: prepare dir: %w", err)
	}

	args := []string{"-m", "venv"}
	if systemSite {
		args = append(args, "--system-site-packages")
	}
	args = append(args, path)
	if err := m.runner.Run(ctx, exe, args...); err != nil {
		return Entry{}, fmt.Errorf("venv: create %s: %w", name, err)
	}

	entry := Entry{
		Path:          path,
		PythonVersion: resolved,
		PythonExe:     exe,
		SystemSite:    systemSite,
	}
	reg[name] = entry
	if err := m.saveRegistry(reg); err != nil {
		return entry, err
	}
	return entry, nil
}

// List 合并注册表条目与默认目录下未登记的环境，按名称排序。
func (m *Manager) List() ([]Info, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry()
	if err != nil {
		return nil, err
	}

	infos := make([]Info, 0, len(reg))
	seen := make(map[string]bool, len(reg))
	for name, entry := range reg {
		infos = append(infos, Info{
			Name:          name,
			Path:          entry.Path,
			PythonVersion: entry.PythonVersion,
			Registered:    true,
			Exists:        dirExists(entry.Path),
		})
		seen[filepath.Clean(entry.Path)] = true
	}

	if dirents, err := os.ReadDir(m.dir); err == nil {
		for _, de := range dirents {
			if !de.IsDir() {
				continue
			}
			path := filepath.Join(m.dir, de.Name())
			if seen[filepath.Clean(path)] || !looksLikeVenv(path) {
				continue
			}
			infos = append(infos, Info{
				Name:          de.Name(),
				Path:          path,
				PythonVersion: "unknown",
				Exists:        true,
			})
		}
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Remove 删除名为 name 的环境目录并解除登记。
// 注册表中路径已不存在的陈旧条目会被直接清理。
func (m *Manager) Remove(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, err := m.loadRegistry()
	if err != nil {
		return err
	}

	entry, registered := reg[name]
	path := entry.Path
	if !registered {
		path = filepath.Join(m.dir, name)
		if !looksLikeVenv(path) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
	}

	if _, err := os.Stat(path); err == nil {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("venv: remove %s: %w", name, err)
		}
	} else if registered {
		m.logger.Warn("venv directory already gone, dropping stale registry entry", "name", name, "path", path)
	}

	if registered {
		delete(reg, name)
		return m.saveRegistry(reg)
	}
	return nil
}

// ActivateCommandFor 返回在 plat 上激活位于 path 的环境的 shell 命令。
func ActivateCommandFor(path string, plat platform.Platform) string {
	if plat.OS == "windows" {
		return filepath.Join(path, "Scripts", "activate.bat")
	}
	return "source " + filepath.Join(path, "bin", "activate")
}

// findPython 定位能创建该环境的解释器，返回可执行文件与版本号。
// version 为空时退回本机默认解释器。
func (m *Manager) findPython(ctx context.Context, version string) (string, string, error) {
	if version == "" {
		for _, name := range []string{"python3", "python"} {
			if path, err := m.runner.LookPath(name); err == nil {
				return path, m.interpreterVersion(ctx, path), nil
			}
		}
		return "", "", fmt.Errorf("%w: no default interpreter on PATH", ErrPythonNotFound)
	}

	series := seriesOf(version)

	if m.plat.OS == "windows" {
		out, err := m.runner.Output(ctx, "py", "-"+series, "-c", "import sys; print(sys.executable)")
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out), version, nil
		}
		return "", "", fmt.Errorf("%w: %s", ErrPythonNotFound, version)
	}

	if path, err := m.runner.LookPath("python" + series); err == nil {
		return path, version, nil
	}
	for _, candidate := range []string{
		filepath.Join(m.home, ".local", "share", "mise", "installs", "python", version, "bin", "python3"),
		filepath.Join(m.home, ".pyenv", "versions", version, "bin", "python3"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, version, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrPythonNotFound, version)
}

// interpreterVersion 读取 "--version" 输出的最后一个字段，失败时返回 unknown。
func (m *Manager) interpreterVersion(ctx context.Context, exe string) string {
	out, err := m.runner.Output(ctx, exe, "--version")
	if err != nil {
		return "unknown"
	}
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return "unknown"
	}
	return fields[len(fields)-1]
}

func (m *Manager) loadRegistry() (map[string]Entry, error) {
	data, err := os.ReadFile(m.registry)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]Entry{}, nil
		}
		return nil, fmt.Errorf("venv: read registry: %w", err)
	}

	reg := map[string]Entry{}
	if err := json.Unmarshal(data, &reg); err != nil {
		m.logger.Warn("venv registry is corrupt, starting empty", "path", m.registry, "error", err)
		return map[string]Entry{}, nil
	}
	return reg, nil
}

func (m *Manager) saveRegistry(reg map[string]Entry) error {
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("venv: encode registry: %w", err)
	}

	dir := filepath.Dir(m.registry)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("venv: prepare dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".venvs-*.tmp")
	if err != nil {
		return fmt.Errorf("venv: temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("venv: write registry: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("venv: sync registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("venv: close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, m.registry); err != nil {
		return fmt.Errorf("venv: replace registry: %w", err)
	}
	return nil
}

// seriesOf 取 major.minor 前缀，输入既可以是 3.12 也可以是 3.12.5。
func seriesOf(version string) string {
	parts := strings.SplitN(version, ".", 3)
	if len(parts) < 2 {
		return version
	}
	return parts[0] + "." + parts[1]
}

// looksLikeVenv 通过激活脚本判断目录是否为虚拟环境。
func looksLikeVenv(path string) bool {
	for _, marker := range []string{
		filepath.Join(path, "bin", "activate"),
		filepath.Join(path, "Scripts", "activate.bat"),
	} {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}
	return false
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
