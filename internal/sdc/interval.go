package sdc

import (
	"sort"

	"github.com/mmsync/mmsync/internal/trange"
)

// IntervalFilter narrows catalog candidates to the files overlapping a range.
type IntervalFilter func(files []RemoteFile, r trange.Range) []RemoteFile

// InInterval 保留与区间重叠的文件。文件只记录起始时间，因此以不晚于 r.Start 的
// 最近一个起始时间作为锚点（没有则取最早的文件），保留 [锚点, r.End) 内的全部文件。
// 同一时间的多个版本会一起保留，交给版本过滤处理。结果按时间、文件名排序。
func InInterval(files []RemoteFile, r trange.Range) []RemoteFile {
	if len(files) == 0 {
		return nil
	}

	sorted := append([]RemoteFile(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Timetag.Equal(sorted[j].Timetag) {
			return sorted[i].FileName < sorted[j].FileName
		}
		return sorted[i].Timetag.Before(sorted[j].Timetag)
	})

	anchor := sorted[0].Timetag
	for _, f := range sorted {
		if f.Timetag.After(r.Start) {
			break
		}
		anchor = f.Timetag
	}

	var out []RemoteFile
	for _, f := range sorted {
		if f.Timetag.Before(anchor) {
			continue
		}
		if !f.Timetag.Before(r.End) {
			continue
		}
		out = append(out, f)
	}
	return out
}
