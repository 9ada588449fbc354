package loader

import (
	"context"

	"github.com/mmsync/mmsync/internal/cache"
)

// Kind 标识 Result 中有效的负载。
type Kind string

const (
	KindAvailable Kind = "available"
	KindPaths     Kind = "paths"
	KindVariables Kind = "variables"
)

// GroupFiles 是单个分组过滤后的路径。
type GroupFiles struct {
	Group cache.GroupKey `json:"group"`
	Paths []string       `json:"paths"`
}

// Result 是一次同步的结果，Kind 决定 Available、Paths、Variables 中哪一个有效。
// 没有任何文件或变量时 NoData 为 true，负载为空切片。
type Result struct {
	Kind      Kind         `json:"kind"`
	Available []string     `json:"available,omitempty"`
	Paths     []string     `json:"paths,omitempty"`
	Variables []string     `json:"variables,omitempty"`
	Groups    []GroupFiles `json:"groups,omitempty"`
	NoData    bool         `json:"no_data"`
}

// Items returns the payload selected by Kind.
func (r Result) Items() []string {
	switch r.Kind {
	case KindAvailable:
		return r.Available
	case KindVariables:
		return r.Variables
	default:
		return r.Paths
	}
}

// Ingestor 把一个分组的本地路径转换为命名变量，返回变量名。
type Ingestor interface {
	Ingest(ctx context.Context, group cache.GroupKey, paths []string) ([]string, error)
}

// IngestFunc adapts a function to Ingestor.
type IngestFunc func(ctx context.Context, group cache.GroupKey, paths []string) ([]string, error)

func (f IngestFunc) Ingest(ctx context.Context, group cache.GroupKey, paths []string) ([]string, error) {
	return f(ctx, group, paths)
}
