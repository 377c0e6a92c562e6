package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/liangyou/pyvm/pkg/models"
)

const (
	defaultReleasesURL = "https://endoflife.date/api/python.json"
	defaultCacheTTL    = 5 * time.Minute
)

// ReleaseSource 定义上游发布系列信息源的能力。
type ReleaseSource interface {
	FetchReleases(ctx context.Context) ([]models.Release, error)
}

// HTTPClient 描述最小化的 HTTP 客户端接口，方便测试时替换。
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option 用于配置 Client。
type Option func(*Client)

// WithReleasesURL 设置自定义发布信息源地址。
func WithReleasesURL(url string) Option {
	return func(c *Client) {
		if url != "" {
			c.releasesURL = url
		}
	}
}

// WithHTTPClient 设置 HTTP 客户端。
func WithHTTPClient(h HTTPClient) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithCacheTTL 设置发布列表的进程内缓存时间。
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// Client 实现 ReleaseSource，并提供工件校验值查询。
type Client struct {
	releasesURL string
	httpClient  HTTPClient
	cacheTTL    time.Duration

	mu       sync.Mutex
	cached   []models.Release
	cachedAt time.Time
}

// NewClient 创建上游版本信息客户端。
func NewClient(opts ...Option) *Client {
	c := &Client{
		releasesURL: defaultReleasesURL,
		httpClient:  http.DefaultClient,
		cacheTTL:    defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchReleases 获取全部发布系列，按系列号降序排列。
func (c *Client) FetchReleases(ctx context.Context) ([]models.Release, error) {
	if releases, ok := c.getCached(); ok {
		return releases, nil
	}

	body, err := c.get(ctx, c.releasesURL)
	if err != nil {
		return nil, err
	}

	releases, err := parseReleases(body)
	if err != nil {
		return nil, err
	}

	c.setCache(releases)
	return releases, nil
}

// FetchChecksum 获取 <artifactURL>.sha256 的首个字段作为期望校验值。
func (c *Client) FetchChecksum(ctx context.Context, artifactURL string) (string, error) {
	body, err := c.get(ctx, artifactURL+".sha256")
	if err != nil {
		return "", err
	}

	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", fmt.Errorf("remote: empty checksum response for %s", artifactURL)
	}
	return fields[0], nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("remote: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read body: %w", err)
	}
	return body, nil
}

func (c *Client) getCached() ([]models.Release, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cached) == 0 {
		return nil, false
	}
	if c.cacheTTL > 0 && time.Since(c.cachedAt) > c.cacheTTL {
		c.cached = nil
		return nil, false
	}
	clone := make([]models.Release, len(c.cached))
	copy(clone, c.cached)
	return clone, true
}

func (c *Client) setCache(releases []models.Release) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cached = make([]models.Release, len(releases))
	copy(c.cached, releases)
	c.cachedAt = time.Now()
}

// cycle 表示上游 API 中的单个发布系列记录。
// eol 与 support 字段既可能是日期字符串，也可能是布尔值。
type cycle struct {
	Cycle   string          `json:"cycle"`
	Latest  string          `json:"latest"`
	EOL     json.RawMessage `json:"eol"`
	Support json.RawMessage `json:"support"`
}

func parseReleases(data []byte) ([]models.Release, error) {
	var cycles []cycle
	if err := json.Unmarshal(data, &cycles); err != nil {
		return nil, fmt.Errorf("remote: decode response: %w", err)
	}

	now := time.Now()
	releases := make([]models.Release, 0, len(cycles))
	for _, cy := range cycles {
		if cy.Cycle == "" {
			continue
		}
		eolDate, eolPassed := parseBoundary(cy.EOL, now)
		_, supportPassed := parseBoundary(cy.Support, now)

		// 上游只收录已发布的系列，状态据此归入三档。
		status := "bugfix"
		switch {
		case eolPassed:
			status = "end-of-life"
		case supportPassed:
			status = "security"
		}

		releases = append(releases, models.Release{
			Series:       cy.Cycle,
			Latest:       cy.Latest,
			Status:       status,
			SupportUntil: eolDate,
		})
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return compareSeries(releases[i].Series, releases[j].Series) > 0
	})

	return releases, nil
}

// parseBoundary 解析 eol/support 字段，返回日期文本以及该期限是否已过。
// 布尔值 true 表示已结束，false 表示仍在维护。
func parseBoundary(raw json.RawMessage, now time.Time) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}

	var passed bool
	if err := json.Unmarshal(raw, &passed); err == nil {
		return "", passed
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return "", false
	}
	date, err := time.Parse("2006-01-02", text)
	if err != nil {
		return text, false
	}
	return text, date.Before(now)
}

func compareSeries(a, b string) int {
	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	max := len(ap)
	if len(bp) > max {
		max = len(bp)
	}
	for i := 0; i < max; i++ {
		ai, bi := 0, 0
		if i < len(ap) {
			ai, _ = strconv.Atoi(ap[i])
		}
		if i < len(bp) {
			bi, _ = strconv.Atoi(bp[i])
		}
		if ai != bi {
			if ai > bi {
				return 1
			}
			return -1
		}
	}
	return 0
}
