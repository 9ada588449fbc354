package cache

import (
	"context"
	"path"
	"sort"

	"github.com/mmsync/mmsync/internal/sdc"
	"github.com/mmsync/mmsync/internal/storage"
	"github.com/mmsync/mmsync/internal/trange"
)

// Scan 在 backend 中查找分组在区间内已缓存的文件，返回排序后的键。
// 扫描范围与远程查询窗口一致（含 burst 跨日回看），文件名中的时间交给 filter 判断。
func (l Layout) Scan(ctx context.Context, backend storage.Backend, g GroupKey, r trange.Range, filter sdc.IntervalFilter) ([]string, error) {
	if filter == nil {
		filter = sdc.InInterval
	}

	window := sdc.Window(r, g.DataRate)
	span := trange.Range{Start: window.Start, End: r.End}

	seen := make(map[string]struct{})
	var dirs []string
	for _, day := range span.Days() {
		dir := l.Dir(g, day)
		if _, ok := seen[dir]; ok {
			continue
		}
		seen[dir] = struct{}{}
		dirs = append(dirs, dir)
	}

	pattern := l.FilePattern(g)
	var candidates []sdc.RemoteFile
	keys := make(map[string]string)
	for _, dir := range dirs {
		infos, err := backend.List(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			name := path.Base(info.Key)
			m := pattern.FindStringSubmatch(name)
			if m == nil {
				continue
			}
			ts, err := FileTime(m[1])
			if err != nil {
				continue
			}
			if _, dup := keys[name]; dup {
				continue
			}
			keys[name] = info.Key
			candidates = append(candidates, sdc.RemoteFile{FileName: name, Timetag: ts, Size: info.Size})
		}
	}

	matched := filter(candidates, r)
	out := make([]string, 0, len(matched))
	for _, f := range matched {
		out = append(out, keys[f.FileName])
	}
	sort.Strings(out)
	return out, nil
}
