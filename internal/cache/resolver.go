package cache

import (
	"context"
	"errors"
	"strconv"

	"github.com/mmsync/mmsync/internal/metrics"
	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/storage"
)

// Resolution 是一次缓存查找的结果。
type Resolution struct {
	Key      string
	Location string
	Hit      bool
	// LocalSize 为本地已有文件的大小，不存在时为 -1。
	LocalSize int64
}

// Resolver 判断远程文件在主缓存中是否命中，命中时不产生任何网络访问。
type Resolver struct {
	backend storage.Backend
	layout  Layout
}

// NewResolver 基于主缓存后端与布局构建 Resolver。
func NewResolver(backend storage.Backend, layout Layout) *Resolver {
	return &Resolver{backend: backend, layout: layout}
}

// Lookup 命中条件：文件存在且大小与目录上报的 file_size 一致（按十进制文本比较）。
// 非 ErrNotFound 的 Stat 错误同时返回 miss 与该错误，由调用方决定是否继续下载。
func (r *Resolver) Lookup(ctx context.Context, g GroupKey, f sdc.RemoteFile) (Resolution, error) {
	key := r.layout.Key(g, f)
	res := Resolution{
		Key:       key,
		Location:  r.backend.Location(key),
		LocalSize: -1,
	}

	info, err := r.backend.Stat(ctx, key)
	if err != nil {
		metrics.RecordCacheLookup(false)
		if errors.Is(err, storage.ErrNotFound) {
			return res, nil
		}
		return res, err
	}

	res.LocalSize = info.Size
	res.Hit = strconv.FormatInt(info.Size, 10) == strconv.FormatInt(f.Size, 10)
	metrics.RecordCacheLookup(res.Hit)
	return res, nil
}
