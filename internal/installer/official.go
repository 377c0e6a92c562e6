package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/liangyou/pyvm/internal/download"
	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/pkg/pyver"
)

const pythonFTPBase = "https://www.python.org/ftp/python"

// Fetcher 抽象工件下载能力，便于测试替换。
type Fetcher interface {
	Fetch(ctx context.Context, url, destDir string) (string, error)
}

// FileVerifier 抽象工件完整性校验能力。
type FileVerifier interface {
	Verify(ctx context.Context, artifactPath, artifactURL string) error
}

// OfficialStrategy 下载 python.org 官方安装器并以静默方式执行。
// 安装参数强制并行模式：不注册为系统默认、不修改 PATH、不关联文件类型。
// 其他平台的官方安装器无法表达并行安装语义，一律拒绝执行。
type OfficialStrategy struct {
	runner     Runner
	downloader Fetcher
	verifier   FileVerifier
	plat       platform.Platform
	verify     bool
	tempDir    string
}

// NewOfficialStrategy 创建官方安装器后端。
func NewOfficialStrategy(runner Runner, downloader Fetcher, verifier FileVerifier, plat platform.Platform, verify bool) *OfficialStrategy {
	return &OfficialStrategy{
		runner:     runner,
		downloader: downloader,
		verifier:   verifier,
		plat:       plat,
		verify:     verify,
		tempDir:    os.TempDir(),
	}
}

func (s *OfficialStrategy) Name() string  { return "official" }
func (s *OfficialStrategy) Priority() int { return 60 }

func (s *OfficialStrategy) Supports(p platform.Platform) bool {
	return p.OS == "windows"
}

// Probe 不依赖任何外部工具，Windows 上始终可用。
func (s *OfficialStrategy) Probe() bool {
	return s.plat.OS == "windows"
}

// installerURL 构造官方安装器的下载地址。
// ARM64 安装器从 3.11 起才提供，更早的版本回退到 amd64。
func (s *OfficialStrategy) installerURL(v pyver.Version) string {
	arch := s.plat.Arch
	switch arch {
	case "arm64":
		if v.Major() < 3 || (v.Major() == 3 && v.Minor() < 11) {
			arch = "amd64"
		}
	case "amd64":
	default:
		arch = "win32"
	}
	return fmt.Sprintf("%s/%s/python-%s-%s.exe", pythonFTPBase, v.String(), v.String(), arch)
}

// Install 下载、校验并静默执行官方安装器。
func (s *OfficialStrategy) Install(ctx context.Context, v pyver.Version) error {
	if s.plat.OS != "windows" {
		return fmt.Errorf("%w: official installer on %s would register itself as the default interpreter", ErrUnsafeInstall, s.plat.OS)
	}

	url := s.installerURL(v)
	artifact, err := s.downloader.Fetch(ctx, url, s.tempDir)
	if err != nil {
		if errors.Is(err, download.ErrNotFound) {
			return fmt.Errorf("%w: no official installer for %s: %v", ErrUnsupportedVersion, v, err)
		}
		return err
	}
	defer os.Remove(artifact)

	if s.verify {
		if err := s.verifier.Verify(ctx, artifact, url); err != nil {
			return err
		}
	}

	return s.runner.Run(ctx, artifact,
		"/quiet",
		"InstallAllUsers=0",
		"PrependPath=0",
		"AssociateFiles=0",
		"Shortcuts=0",
	)
}

// Uninstall 通过 winget 按常见的软件包标识尝试静默卸载。
func (s *OfficialStrategy) Uninstall(ctx context.Context, v pyver.Version) error {
	if _, err := s.runner.LookPath("winget"); err != nil {
		return fmt.Errorf("%w: winget is required for removal", ErrUnavailable)
	}

	ids := []string{
		"Python.Python." + v.Series(),
		"PythonSoftwareFoundation.Python." + v.Series(),
	}
	var lastErr error
	for _, id := range ids {
		if err := s.runner.Run(ctx, "winget", "uninstall", "--id", id, "--silent"); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("installer: winget removal failed: %w", lastErr)
}

// InstallLocation 返回按用户安装时的默认目录。
func (s *OfficialStrategy) InstallLocation(v pyver.Version) string {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		return ""
	}
	return filepath.Join(localAppData, "Programs", "Python", fmt.Sprintf("Python%d%d", v.Major(), v.Minor()))
}
