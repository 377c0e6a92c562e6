package installer

import (
	"context"
	"sync"

	"github.com/liangyou/pyvm/internal/platform"
	"github.com/liangyou/pyvm/pkg/pyver"
)

// Strategy 定义一个安装后端的最小能力集。
// Probe 必须廉价、无副作用，且不得访问网络。
type Strategy interface {
	Name() string
	Priority() int
	Supports(p platform.Platform) bool
	Probe() bool
	Install(ctx context.Context, v pyver.Version) error
	Uninstall(ctx context.Context, v pyver.Version) error
	InstallLocation(v pyver.Version) string
}

// toolProbe 通过 PATH 探测外部工具，结果在单次运行内缓存。
type toolProbe struct {
	runner Runner
	tool   string

	once  sync.Once
	found bool
}

func (p *toolProbe) Probe() bool {
	p.once.Do(func() {
		_, err := p.runner.LookPath(p.tool)
		p.found = err == nil
	})
	return p.found
}
