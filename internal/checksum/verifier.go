package checksum

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrMismatch 表示本地工件的哈希与官方校验值不一致。
var ErrMismatch = errors.New("checksum: mismatch")

// Fetcher 获取工件对应的期望校验值。
type Fetcher interface {
	FetchChecksum(ctx context.Context, artifactURL string) (string, error)
}

// Verifier 校验下载工件的完整性，任何异常一律视为校验失败。
type Verifier struct {
	source Fetcher
}

// NewVerifier 创建校验器。
func NewVerifier(source Fetcher) *Verifier {
	return &Verifier{source: source}
}

// Verify 获取期望校验值并与本地文件的 SHA256 比对（十六进制、忽略大小写）。
// 期望值获取失败同样返回错误，绝不放行未经验证的工件。
func (v *Verifier) Verify(ctx context.Context, artifactPath, artifactURL string) error {
	if v.source == nil {
		return errors.New("checksum: missing checksum source")
	}

	expected, err := v.source.FetchChecksum(ctx, artifactURL)
	if err != nil {
		return fmt.Errorf("checksum: fetch expected value: %w", err)
	}
	if strings.TrimSpace(expected) == "" {
		return fmt.Errorf("checksum: empty expected value for %s", filepath.Base(artifactPath))
	}

	actual, err := fileSHA256(artifactPath)
	if err != nil {
		return err
	}

	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("%w: got %s want %s", ErrMismatch, actual, expected)
	}
	return nil
}

func fileSHA256(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum: open file: %w", err)
	}
	defer file.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return "", fmt.Errorf("checksum: hash file: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
