package version

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/liangyou/pyvm/internal/remote"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// CommandRunner 描述获取本机解释器版本所需的最小命令执行能力。
type CommandRunner interface {
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// CheckResult 是一次版本检查的结论。
type CheckResult struct {
	Current  pyver.Version
	Latest   pyver.Version
	UpToDate bool
}

// Interpreter 描述检测到的本机默认解释器。
type Interpreter struct {
	Version pyver.Version
	Path    string
}

// Checker 对比本机解释器与上游最新稳定版本。
type Checker struct {
	source remote.ReleaseSource
	runner CommandRunner
}

// NewChecker 创建版本检查服务。
func NewChecker(source remote.ReleaseSource, runner CommandRunner) *Checker {
	return &Checker{source: source, runner: runner}
}

// CheckLatest 返回 (本机版本, 上游最新版本, 是否已是最新)。
func (c *Checker) CheckLatest(ctx context.Context) (CheckResult, error) {
	current, _, err := c.currentVersion(ctx)
	if err != nil {
		return CheckResult{}, err
	}

	latest, err := c.latestVersion(ctx)
	if err != nil {
		return CheckResult{Current: current}, err
	}

	return CheckResult{
		Current:  current,
		Latest:   latest,
		UpToDate: !current.LessThan(latest),
	}, nil
}

// LocalInterpreter 返回本机默认解释器的版本与可执行文件路径。
func (c *Checker) LocalInterpreter(ctx context.Context) (Interpreter, error) {
	v, exe, err := c.currentVersion(ctx)
	if err != nil {
		return Interpreter{}, err
	}

	path, err := c.runner.Output(ctx, exe, "-c", "import sys; print(sys.executable)")
	if err != nil || strings.TrimSpace(path) == "" {
		path = exe
	}
	return Interpreter{Version: v, Path: strings.TrimSpace(path)}, nil
}

// currentVersion 依次尝试 python3 与 python 获取本机解释器版本，
// 返回版本号以及实际应答的命令名。
func (c *Checker) currentVersion(ctx context.Context) (pyver.Version, string, error) {
	var lastErr error
	for _, exe := range []string{"python3", "python"} {
		out, err := c.runner.Output(ctx, exe, "--version")
		if err != nil {
			lastErr = err
			continue
		}
		v, err := parsePythonVersionOutput(out)
		if err != nil {
			lastErr = err
			continue
		}
		return v, exe, nil
	}
	if lastErr == nil {
		lastErr = errors.New("version: no python interpreter found")
	}
	return pyver.Version{}, "", fmt.Errorf("version: detect local interpreter: %w", lastErr)
}

// latestVersion 取仍在维护（bugfix/security）系列中最新版本的最大值，
// 忽略无法解析的条目。
func (c *Checker) latestVersion(ctx context.Context) (pyver.Version, error) {
	releases, err := c.source.FetchReleases(ctx)
	if err != nil {
		return pyver.Version{}, err
	}

	var candidates []pyver.Version
	for _, rel := range releases {
		if rel.Status != "bugfix" && rel.Status != "security" {
			continue
		}
		v, err := pyver.Parse(rel.Latest)
		if err != nil {
			continue
		}
		candidates = append(candidates, v)
	}

	latest, ok := pyver.Latest(candidates)
	if !ok {
		return pyver.Version{}, errors.New("version: upstream reported no stable releases")
	}
	return latest, nil
}

// parsePythonVersionOutput 解析 "Python 3.12.3" 形式的输出。
func parsePythonVersionOutput(out string) (pyver.Version, error) {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return pyver.Version{}, errors.New("version: empty interpreter output")
	}
	return pyver.Parse(fields[len(fields)-1])
}
