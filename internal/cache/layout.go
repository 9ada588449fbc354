package cache

import (
	"fmt"
	"path"
	"regexp"
	"time"

	"github.com/mmsync/mmsync/internal/sdc"
)

// GroupKey 唯一标识一次同步中的一个请求分组。
type GroupKey struct {
	Probe    string `json:"probe"`
	DataRate string `json:"data_rate"`
	Level    string `json:"level"`
	Datatype string `json:"datatype"`
}

func (g GroupKey) String() string {
	return fmt.Sprintf("probe: %s, drate: %s, level: %s, datatype: %s", g.Probe, g.DataRate, g.Level, g.Datatype)
}

// Layout 计算某个仪器的缓存键。
type Layout struct {
	Instrument string
}

// Dir 返回分组在 t 时刻所在的目录键；burst 数据额外按日分目录。
func (l Layout) Dir(g GroupKey, t time.Time) string {
	t = t.UTC()
	parts := []string{l.baseDir(g), t.Format("2006"), t.Format("01")}
	if sdc.IsBurst(g.DataRate) {
		parts = append(parts, t.Format("02"))
	}
	return path.Join(parts...)
}

// Key 返回远程文件在缓存中的键，目录由文件的 timetag 决定。
func (l Layout) Key(g GroupKey, f sdc.RemoteFile) string {
	return path.Join(l.Dir(g, f.Timetag), f.FileName)
}

func (l Layout) baseDir(g GroupKey) string {
	parts := []string{"mms" + g.Probe, l.Instrument, g.DataRate, g.Level}
	if g.Datatype != "" {
		parts = append(parts, g.Datatype)
	}
	return path.Join(parts...)
}

// FilePattern 匹配该分组的文件名，第一个子组为文件名中的时间（8 或 14 位数字）。
func (l Layout) FilePattern(g GroupKey) *regexp.Regexp {
	name := "mms" + regexp.QuoteMeta(g.Probe) + "_" + regexp.QuoteMeta(l.Instrument) + "_" +
		regexp.QuoteMeta(g.DataRate) + "_" + regexp.QuoteMeta(g.Level)
	if g.Datatype != "" {
		name += "_" + regexp.QuoteMeta(g.Datatype)
	}
	return regexp.MustCompile(`^` + name + `_(\d{14}|\d{8})_v\d+\.\d+\.\d+\.cdf$`)
}

// FileTime 解析文件名中的时间字段。
func FileTime(stamp string) (time.Time, error) {
	switch len(stamp) {
	case 14:
		return time.ParseInLocation("20060102150405", stamp, time.UTC)
	case 8:
		return time.ParseInLocation("20060102", stamp, time.UTC)
	default:
		return time.Time{}, fmt.Errorf("unsupported file time %q", stamp)
	}
}
