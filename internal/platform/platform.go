package platform

import (
	"fmt"
	"runtime"
)

var supportedOS = map[string]struct{}{
	"linux":   {},
	"darwin":  {},
	"windows": {},
}

// Platform 描述当前主机的操作系统与归一化后的架构。
type Platform struct {
	OS   string // linux / darwin / windows
	Arch string // amd64 / arm64 / x86
}

// Detector 探测并校验当前运行平台。
type Detector struct {
	goos   func() string
	goarch func() string
}

// NewDetector 创建平台探测器。
func NewDetector() *Detector {
	return &Detector{
		goos:   func() string { return runtime.GOOS },
		goarch: func() string { return runtime.GOARCH },
	}
}

// Detect 返回归一化平台信息，不支持的操作系统返回错误。
func (d *Detector) Detect() (Platform, error) {
	osName := d.goos()
	if _, ok := supportedOS[osName]; !ok {
		return Platform{}, fmt.Errorf("platform: unsupported operating system %s", osName)
	}
	return Platform{OS: osName, Arch: NormalizeArch(d.goarch())}, nil
}

// NormalizeArch 将机器架构名称折叠为 amd64 / arm64 / x86 三类。
func NormalizeArch(machine string) string {
	switch machine {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	default:
		return "x86"
	}
}
