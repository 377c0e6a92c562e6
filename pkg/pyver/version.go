package pyver

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// ErrInvalidVersion 表示版本号不符合 major.minor.patch 格式。
var ErrInvalidVersion = errors.New("pyver: invalid version format")

var versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// Version 表示一个 Python 运行时版本，例如 3.12.8。
type Version struct {
	raw string
	sem *semver.Version
}

// Parse 解析严格的 major.minor.patch 版本号，其余输入一律拒绝。
func Parse(input string) (Version, error) {
	trimmed := strings.TrimSpace(input)
	if !versionPattern.MatchString(trimmed) {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, input)
	}
	sem, err := semver.StrictNewVersion(trimmed)
	if err != nil {
		return Version{}, fmt.Errorf("%w: %q", ErrInvalidVersion, input)
	}
	return Version{raw: trimmed, sem: sem}, nil
}

// MustParse 在解析失败时 panic，仅用于测试与常量场景。
func MustParse(input string) Version {
	v, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return v
}

// String 按原始输入格式输出，Parse(String()) 与原值等价。
func (v Version) String() string {
	return v.raw
}

// IsZero 判断是否为零值。
func (v Version) IsZero() bool {
	return v.sem == nil
}

// Series 返回 major.minor 系列号，例如 3.12。
func (v Version) Series() string {
	if v.sem == nil {
		return ""
	}
	return fmt.Sprintf("%d.%d", v.sem.Major(), v.sem.Minor())
}

// Major 返回主版本号。
func (v Version) Major() int {
	if v.sem == nil {
		return 0
	}
	return int(v.sem.Major())
}

// Minor 返回次版本号。
func (v Version) Minor() int {
	if v.sem == nil {
		return 0
	}
	return int(v.sem.Minor())
}

// Compare 按语义化版本排序比较，返回 -1、0 或 1。
func (v Version) Compare(other Version) int {
	return v.sem.Compare(other.sem)
}

// LessThan 判断 v 是否低于 other。
func (v Version) LessThan(other Version) bool {
	return v.sem.LessThan(other.sem)
}

// Equal 判断两个版本是否相等。
func (v Version) Equal(other Version) bool {
	return v.sem.Equal(other.sem)
}

// Latest 返回集合中的最大版本，集合为空时返回 false。
func Latest(versions []Version) (Version, bool) {
	var best Version
	for _, v := range versions {
		if v.IsZero() {
			continue
		}
		if best.IsZero() || best.LessThan(v) {
			best = v
		}
	}
	return best, !best.IsZero()
}
