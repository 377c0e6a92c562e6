package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
)

// Runner 抽象外部命令的探测与执行，便于测试时替换。
// LookPath 必须廉价且无副作用，不得产生网络或进程开销。
type Runner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) error
	RunIn(ctx context.Context, dir, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) (string, error)
}

// ExecRunner 通过 os/exec 执行外部命令，标准输出与错误流实时透传。
type ExecRunner struct {
	Stdout io.Writer
	Stderr io.Writer
}

// NewExecRunner 创建命令执行器，nil 输出流默认接管进程自身的输出。
func NewExecRunner(stdout, stderr io.Writer) *ExecRunner {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &ExecRunner{Stdout: stdout, Stderr: stderr}
}

// LookPath 检查命令是否存在于 PATH。
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run 同步执行命令，非零退出码包装为 ExternalToolError。
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) error {
	return r.RunIn(ctx, "", name, args...)
}

// RunIn 在指定工作目录下同步执行命令。
func (r *ExecRunner) RunIn(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ExternalToolError{Tool: name, Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("installer: run %s: %w", name, err)
	}
	return nil
}

// Output 执行命令并捕获标准输出。
func (r *ExecRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &ExternalToolError{Tool: name, Code: exitErr.ExitCode()}
		}
		return "", fmt.Errorf("installer: run %s: %w", name, err)
	}
	return strings.TrimSpace(string(out)), nil
}
