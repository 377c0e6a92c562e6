package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
)

var (
	// ErrFailed 表示在用尽重试次数后下载仍未成功。
	ErrFailed = errors.New("download: failed")
	// ErrNotFound 表示上游不存在该工件（404 等客户端错误），不会触发重试。
	ErrNotFound = errors.New("download: artifact not found")
)

// ProgressFunc 在下载过程中回调当前已完成的字节数以及总字节数。
type ProgressFunc func(downloaded, total int64)

// HTTPClient 定义 Downloader 所需的 HTTP 客户端能力。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option 配置 Downloader。
type Option func(*Downloader)

// WithHTTPClient 指定自定义 HTTP 客户端。
func WithHTTPClient(client HTTPClient) Option {
	return func(d *Downloader) {
		if client != nil {
			d.httpClient = client
		}
	}
}

// WithMaxRetries 指定瞬时失败的最大尝试次数。
func WithMaxRetries(n int) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.maxRetries = n
		}
	}
}

// WithProgressFunc 指定进度回调。
func WithProgressFunc(fn ProgressFunc) Option {
	return func(d *Downloader) {
		d.progressFunc = fn
	}
}

// Downloader 负责下载安装工件。瞬时网络错误按次数上限立即重试，
// 客户端错误视为永久失败直接返回。
type Downloader struct {
	httpClient   HTTPClient
	maxRetries   int
	progressFunc ProgressFunc
}

// NewDownloader 创建 Downloader，默认最多尝试 3 次。
func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient: http.DefaultClient,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch 下载 rawURL 指向的工件到 destDir，返回落盘后的文件路径。
// 先写入临时文件再重命名，避免留下半成品。
func (d *Downloader) Fetch(ctx context.Context, rawURL, destDir string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: invalid url %q", ErrFailed, rawURL)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("download: create dir: %w", err)
	}

	fileName := path.Base(parsed.Path)
	if fileName == "" || fileName == "." || fileName == "/" {
		return "", fmt.Errorf("%w: url has no file name %q", ErrFailed, rawURL)
	}
	finalPath := filepath.Join(destDir, fileName)

	var lastErr error
	for attempt := 0; attempt < d.maxRetries; attempt++ {
		saved, err := d.fetchOnce(ctx, rawURL, destDir, finalPath)
		if err == nil {
			return saved, nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return "", err
		}
		lastErr = err
	}

	return "", fmt.Errorf("%w after %d attempts: %v", ErrFailed, d.maxRetries, lastErr)
}

func (d *Downloader) fetchOnce(ctx context.Context, rawURL, destDir, finalPath string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("download: build request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return "", fmt.Errorf("%w: status %d for %s", ErrNotFound, resp.StatusCode, rawURL)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status %d", resp.StatusCode)
	}

	tempFile, err := os.CreateTemp(destDir, "download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("download: temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		tempFile.Close()
		os.Remove(tempPath)
	}()

	total := resp.ContentLength
	written, err := io.Copy(tempFile, d.wrapProgress(resp.Body, total))
	if err != nil {
		return "", fmt.Errorf("download: write file: %w", err)
	}
	if total > 0 && written != total {
		return "", fmt.Errorf("download: size mismatch, got %d want %d", written, total)
	}

	if err := tempFile.Sync(); err != nil {
		return "", fmt.Errorf("download: sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return "", fmt.Errorf("download: close file: %w", err)
	}

	if err := os.Remove(finalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("download: remove existing: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return "", fmt.Errorf("download: finalize file: %w", err)
	}

	return finalPath, nil
}

func (d *Downloader) wrapProgress(reader io.Reader, total int64) io.Reader {
	if d.progressFunc == nil {
		return reader
	}
	return &progressReader{r: reader, total: total, report: d.progressFunc}
}

type progressReader struct {
	r      io.Reader
	total  int64
	read   int64
	report ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.report(p.read, p.total)
	}
	return n, err
}
