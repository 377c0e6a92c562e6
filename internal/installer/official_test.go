package installer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liangyou/pyvm/internal/download"
	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/pkg/pyver"
)

type stubFetcher struct {
	path string
	err  error
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, url, _ string) (string, error) {
	f.urls = append(f.urls, url)
	if f.err != nil {
		return "", f.err
	}
	return f.path, nil
}

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, _, _ string) error {
	v.calls++
	return v.err
}

func windowsPlat(arch string) platform.Platform {
	return platform.Platform{OS: "windows", Arch: arch}
}

func tempArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("binary"), 0o644))
	return path
}

func TestOfficialRefusesNonWindows(t *testing.T) {
	t.Parallel()

	for _, osName := range []string{"linux", "darwin"} {
		fetcher := &stubFetcher{}
		s := NewOfficialStrategy(&fakeRunner{}, fetcher, &stubVerifier{}, platform.Platform{OS: osName}, true)

		err := s.Install(context.Background(), pyver.MustParse("3.12.8"))
		assert.ErrorIs(t, err, ErrUnsafeInstall, osName)
		// 拒绝之前不允许触网。
		assert.Empty(t, fetcher.urls)
	}
}

func TestOfficialInstallerURL(t *testing.T) {
	t.Parallel()

	cases := []struct {
		arch    string
		version string
		want    string
	}{
		{"amd64", "3.12.8", "https://www.python.org/ftp/python/3.12.8/python-3.12.8-amd64.exe"},
		{"arm64", "3.12.8", "https://www.python.org/ftp/python/3.12.8/python-3.12.8-arm64.exe"},
		// ARM64 安装器从 3.11 起才提供。
		{"arm64", "3.10.11", "https://www.python.org/ftp/python/3.10.11/python-3.10.11-amd64.exe"},
		{"x86", "3.12.8", "https://www.python.org/ftp/python/3.12.8/python-3.12.8-win32.exe"},
	}
	for _, tc := range cases {
		s := NewOfficialStrategy(&fakeRunner{}, &stubFetcher{}, &stubVerifier{}, windowsPlat(tc.arch), true)
		assert.Equal(t, tc.want, s.installerURL(pyver.MustParse(tc.version)), "%s %s", tc.arch, tc.version)
	}
}

func TestOfficialInstallRunsQuietInstaller(t *testing.T) {
	t.Parallel()

	artifact := tempArtifact(t, "python-3.12.8-amd64.exe")
	runner := &fakeRunner{}
	fetcher := &stubFetcher{path: artifact}
	verifier := &stubVerifier{}

	s := NewOfficialStrategy(runner, fetcher, verifier, windowsPlat("amd64"), true)

	require.NoError(t, s.Install(context.Background(), pyver.MustParse("3.12.8")))

	assert.Equal(t, 1, verifier.calls)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, artifact, runner.calls[0].name)
	// 静默安装且绝不注册为系统默认解释器。
	assert.Equal(t, []string{
		"/quiet",
		"InstallAllUsers=0",
		"PrependPath=0",
		"AssociateFiles=0",
		"Shortcuts=0",
	}, runner.calls[0].args)
}

func TestOfficialSkipsVerifyWhenDisabled(t *testing.T) {
	t.Parallel()

	artifact := tempArtifact(t, "python-3.12.8-amd64.exe")
	verifier := &stubVerifier{err: errors.New("should not be called")}

	s := NewOfficialStrategy(&fakeRunner{}, &stubFetcher{path: artifact}, verifier, windowsPlat("amd64"), false)

	require.NoError(t, s.Install(context.Background(), pyver.MustParse("3.12.8")))
	assert.Equal(t, 0, verifier.calls)
}

func TestOfficialVerifyFailureAborts(t *testing.T) {
	t.Parallel()

	artifact := tempArtifact(t, "python-3.12.8-amd64.exe")
	runner := &fakeRunner{}
	verifier := &stubVerifier{err: errors.New("checksum: mismatch")}

	s := NewOfficialStrategy(runner, &stubFetcher{path: artifact}, verifier, windowsPlat("amd64"), true)

	err := s.Install(context.Background(), pyver.MustParse("3.12.8"))
	require.Error(t, err)
	// 校验失败后绝不执行安装器。
	assert.Empty(t, runner.calls)
}

func TestOfficialMissingArtifactMeansUnsupportedVersion(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{err: fmt.Errorf("%w: status 404", download.ErrNotFound)}
	s := NewOfficialStrategy(&fakeRunner{}, fetcher, &stubVerifier{}, windowsPlat("amd64"), true)

	err := s.Install(context.Background(), pyver.MustParse("9.9.9"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestOfficialUninstallRequiresWinget(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{missing: map[string]bool{"winget": true}}
	s := NewOfficialStrategy(runner, &stubFetcher{}, &stubVerifier{}, windowsPlat("amd64"), true)

	err := s.Uninstall(context.Background(), pyver.MustParse("3.12.8"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOfficialUninstallTriesKnownPackageIDs(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		runErr: func(c call) error {
			// 第一个包标识不存在，第二个成功。
			if len(c.args) >= 3 && c.args[2] == "Python.Python.3.12" {
				return &ExternalToolError{Tool: "winget", Code: 1}
			}
			return nil
		},
	}
	s := NewOfficialStrategy(runner, &stubFetcher{}, &stubVerifier{}, windowsPlat("amd64"), true)

	require.NoError(t, s.Uninstall(context.Background(), pyver.MustParse("3.12.8")))

	assert.Equal(t, []string{
		"winget uninstall --id Python.Python.3.12 --silent",
		"winget uninstall --id PythonSoftwareFoundation.Python.3.12 --silent",
	}, runner.commandLines())
}
