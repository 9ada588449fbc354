// Package mirror resolves files from a read-only secondary store.
package mirror

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/mmsync/mmsync/internal/cache"
	"github.com/mmsync/mmsync/internal/metrics"
	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/storage"
	"github.com/mmsync/mmsync/internal/trange"
)

// Fallback 在主缓存缺失且远程不可用时，从镜像复制文件到主缓存。镜像只读，从不被写入或移动。
type Fallback struct {
	mirror  storage.Backend
	primary storage.Backend
	layout  cache.Layout
	filter  sdc.IntervalFilter
	logger  *logrus.Logger
}

// New 构建 Fallback；mirror 为 nil 时 Resolve 总是返回空结果。
func New(mirror, primary storage.Backend, layout cache.Layout, filter sdc.IntervalFilter, logger *logrus.Logger) *Fallback {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if filter == nil {
		filter = sdc.InInterval
	}
	return &Fallback{mirror: mirror, primary: primary, layout: layout, filter: filter, logger: logger}
}

// Enabled reports whether a mirror is configured.
func (f *Fallback) Enabled() bool {
	return f != nil && f.mirror != nil
}

// Resolve 扫描镜像中分组在区间内的文件，把 skip 以外的文件复制到主缓存的同一键，
// 返回主缓存中的位置。镜像中不存在任何文件不是错误；单个文件复制失败只记录日志。
func (f *Fallback) Resolve(ctx context.Context, g cache.GroupKey, r trange.Range, skip map[string]struct{}) ([]string, error) {
	if !f.Enabled() {
		return nil, nil
	}

	keys, err := f.layout.Scan(ctx, f.mirror, g, r, f.filter)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, key := range keys {
		location := f.primary.Location(key)
		if _, ok := skip[location]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		if existing, err := f.primary.Stat(ctx, key); err == nil {
			if src, srcErr := f.mirror.Stat(ctx, key); srcErr == nil && src.Size == existing.Size {
				out = append(out, location)
				continue
			}
		} else if !errors.Is(err, storage.ErrNotFound) {
			f.logger.WithError(err).WithField("key", key).Warn("mirror_stat_failed")
		}

		if _, err := storage.Copy(ctx, f.mirror, key, f.primary, key); err != nil {
			metrics.RecordMirrorCopy(false)
			f.logger.WithError(err).WithFields(logrus.Fields{
				"action": "mirror_copy",
				"key":    key,
				"group":  g.String(),
			}).Warn("mirror_copy_failed")
			continue
		}
		metrics.RecordMirrorCopy(true)
		f.logger.WithFields(logrus.Fields{
			"action":   "mirror_copy",
			"source":   f.mirror.Location(key),
			"location": location,
		}).Info("mirror_file_copied")
		out = append(out, location)
	}
	return out, nil
}
