package loader

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mmsync/mmsync/internal/cache"
	"github.com/mmsync/mmsync/internal/filter"
	"github.com/mmsync/mmsync/internal/trange"
)

// Mode 决定 Sync 返回哪一种结果。
type Mode int

const (
	// ModePaths 返回排序、去重并经版本过滤后的本地路径。
	ModePaths Mode = iota
	// ModeAvailable 只列出窗口内远程可用的文件名，不下载。
	ModeAvailable
	// ModeIngest 把每个分组过滤后的路径交给 Ingestor，返回变量名。
	ModeIngest
)

func (m Mode) String() string {
	switch m {
	case ModeAvailable:
		return "available"
	case ModeIngest:
		return "ingest"
	default:
		return "paths"
	}
}

// ParseMode 解析模式名称，空字符串视为 paths。
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "paths":
		return ModePaths, nil
	case "available":
		return ModeAvailable, nil
	case "ingest":
		return ModeIngest, nil
	default:
		return ModePaths, fmt.Errorf("unknown mode %q", raw)
	}
}

// 未指定选择器时的默认值。
const (
	DefaultInstrument = "fgm"
	DefaultProbe      = "1"
	DefaultDataRate   = "srvy"
	DefaultLevel      = "l2"
)

// Request 描述一次同步请求。选择器列表的笛卡尔积即分组集合。
type Request struct {
	TimeRange  trange.Range
	Instrument string
	Probes     []string
	DataRates  []string
	Levels     []string
	Datatypes  []string
	Policy     filter.Policy
	Mode       Mode
	// NoUpdate 只使用本地缓存与镜像，不访问远程。
	NoUpdate bool
}

// ErrEmptyRange 表示请求区间为空。
var ErrEmptyRange = errors.New("time range is empty")

// Normalize 去除空白、统一大小写、去重并补齐默认值。probe 既可写作 "1" 也可写作 "mms1"。
func (r Request) Normalize() (Request, error) {
	if !r.TimeRange.End.After(r.TimeRange.Start) {
		return r, ErrEmptyRange
	}
	if err := r.Policy.Validate(); err != nil {
		return r, err
	}

	out := r
	out.Instrument = strings.ToLower(strings.TrimSpace(r.Instrument))
	if out.Instrument == "" {
		out.Instrument = DefaultInstrument
	}

	probes := make([]string, 0, len(r.Probes))
	for _, p := range r.Probes {
		p = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(p)), "mms")
		if p == "" {
			continue
		}
		if n, err := strconv.Atoi(p); err != nil || n < 1 || n > 4 {
			return r, fmt.Errorf("invalid probe %q", p)
		}
		probes = append(probes, p)
	}
	out.Probes = orDefault(unique(probes), DefaultProbe)
	out.DataRates = orDefault(unique(lowerAll(r.DataRates, false)), DefaultDataRate)
	out.Levels = orDefault(unique(lowerAll(r.Levels, false)), DefaultLevel)
	out.Datatypes = orDefault(unique(lowerAll(r.Datatypes, true)), "")
	return out, nil
}

// Groups 枚举请求的全部分组，顺序稳定且每个 GroupKey 只出现一次。
func Groups(r Request) []cache.GroupKey {
	probes := unique(r.Probes)
	rates := unique(r.DataRates)
	levels := unique(r.Levels)
	datatypes := unique(r.Datatypes)

	groups := make([]cache.GroupKey, 0, len(probes)*len(rates)*len(levels)*len(datatypes))
	for _, p := range probes {
		for _, rate := range rates {
			for _, lvl := range levels {
				for _, dt := range datatypes {
					groups = append(groups, cache.GroupKey{Probe: p, DataRate: rate, Level: lvl, Datatype: dt})
				}
			}
		}
	}
	return groups
}

func lowerAll(values []string, keepEmpty bool) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" && !keepEmpty {
			continue
		}
		out = append(out, v)
	}
	return out
}

// unique 保留首次出现顺序去重。
func unique(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func orDefault(values []string, def string) []string {
	if len(values) == 0 {
		return []string{def}
	}
	return values
}

func sortedUnique(values []string) []string {
	out := unique(values)
	sort.Strings(out)
	return out
}
