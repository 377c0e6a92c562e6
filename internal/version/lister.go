package version

import (
	"context"
	"fmt"

	"github.com/liangyou/pyvm/internal/remote"
	"github.com/liangyou/pyvm/pkg/models"
)

// Lister 提供可安装版本系列的查询。
type Lister struct {
	source remote.ReleaseSource
}

// NewLister 创建版本列表服务。
func NewLister(source remote.ReleaseSource) *Lister {
	return &Lister{source: source}
}

// ListAvailable 返回发布系列列表，新系列在前。
// includeAll 为 false 时只保留仍在维护（bugfix/security）的系列。
func (l *Lister) ListAvailable(ctx context.Context, includeAll bool) ([]models.Release, error) {
	if l.source == nil {
		return nil, fmt.Errorf("version: release source is required")
	}
	releases, err := l.source.FetchReleases(ctx)
	if err != nil {
		return nil, err
	}

	if includeAll {
		return releases, nil
	}

	filtered := make([]models.Release, 0, len(releases))
	for _, rel := range releases {
		if rel.Status == "bugfix" || rel.Status == "security" {
			filtered = append(filtered, rel)
		}
	}
	return filtered, nil
}
