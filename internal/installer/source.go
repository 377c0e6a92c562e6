package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/liangyou/pyvm/internal/download"
	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// SourceStrategy 在 Linux 上从官方源码构建。安装步骤使用 make altinstall，
// 只产生 python<series> 可执行文件，不会触碰 python3 符号链接。
type SourceStrategy struct {
	runner     Runner
	downloader Fetcher
	verifier   FileVerifier
	verify     bool
	tempDir    string
	jobs       int

	probeOnce sync.Once
	found     bool
}

// NewSourceStrategy 创建源码构建后端。
func NewSourceStrategy(runner Runner, downloader Fetcher, verifier FileVerifier, verify bool) *SourceStrategy {
	jobs := runtime.NumCPU()
	if jobs < 2 {
		jobs = 2
	}
	return &SourceStrategy{
		runner:     runner,
		downloader: downloader,
		verifier:   verifier,
		verify:     verify,
		tempDir:    os.TempDir(),
		jobs:       jobs,
	}
}

func (s *SourceStrategy) Name() string  { return "source" }
func (s *SourceStrategy) Priority() int { return 50 }

func (s *SourceStrategy) Supports(p platform.Platform) bool {
	return p.OS == "linux"
}

// Probe 要求构建工具链（make、gcc、tar）全部就绪。
func (s *SourceStrategy) Probe() bool {
	s.probeOnce.Do(func() {
		for _, tool := range []string{"make", "gcc", "tar"} {
			if _, err := s.runner.LookPath(tool); err != nil {
				return
			}
		}
		s.found = true
	})
	return s.found
}

// Install 下载源码包、校验、解压并执行 configure / make / make altinstall。
func (s *SourceStrategy) Install(ctx context.Context, v pyver.Version) error {
	url := fmt.Sprintf("%s/%s/Python-%s.tar.xz", pythonFTPBase, v.String(), v.String())
	archive, err := s.downloader.Fetch(ctx, url, s.tempDir)
	if err != nil {
		if errors.Is(err, download.ErrNotFound) {
			return fmt.Errorf("%w: no source tarball for %s: %v", ErrUnsupportedVersion, v, err)
		}
		return err
	}
	defer os.Remove(archive)

	if s.verify {
		if err := s.verifier.Verify(ctx, archive, url); err != nil {
			return err
		}
	}

	buildDir := filepath.Join(s.tempDir, "Python-"+v.String())
	defer os.RemoveAll(buildDir)

	if err := s.runner.Run(ctx, "tar", "-xf", archive, "-C", s.tempDir); err != nil {
		return fmt.Errorf("installer: extract source: %w", err)
	}

	if err := s.runner.RunIn(ctx, buildDir, "./configure", "--enable-optimizations"); err != nil {
		return fmt.Errorf("installer: configure: %w", err)
	}
	if err := s.runner.RunIn(ctx, buildDir, "make", "-j"+strconv.Itoa(s.jobs)); err != nil {
		return fmt.Errorf("installer: build: %w", err)
	}

	install := []string{"make", "altinstall"}
	if _, err := s.runner.LookPath("sudo"); err == nil {
		install = append([]string{"sudo"}, install...)
	}
	if err := s.runner.RunIn(ctx, buildDir, install[0], install[1:]...); err != nil {
		return fmt.Errorf("installer: altinstall: %w", err)
	}
	return nil
}

// Uninstall 拒绝自动卸载：altinstall 没有对应的逆操作清单。
func (s *SourceStrategy) Uninstall(context.Context, pyver.Version) error {
	return ErrUninstallUnsupported
}

// InstallLocation 返回 altinstall 产生的解释器路径。
func (s *SourceStrategy) InstallLocation(v pyver.Version) string {
	return "/usr/local/bin/python" + v.Series()
}
