// Package trange 描述一次请求关注的时间区间 [Start, End)，统一使用 UTC。
package trange

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// 支持的输入格式，按顺序尝试。
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02/15:04:05",
	"2006-01-02T15:04",
	"2006-01-02/15:04",
	"2006-01-02",
}

// Range 是左闭右开的时间区间。
type Range struct {
	Start time.Time
	End   time.Time
}

// New 校验 start < end 并统一转换到 UTC。
func New(start, end time.Time) (Range, error) {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return Range{}, fmt.Errorf("time range end %s must be after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Range{Start: start, End: end}, nil
}

// Parse 解析一对时间字符串，例如 "2015-10-16" 与 "2015-10-16/12:00:00"。
func Parse(start, end string) (Range, error) {
	s, err := ParseTime(start)
	if err != nil {
		return Range{}, fmt.Errorf("parse start: %w", err)
	}
	e, err := ParseTime(end)
	if err != nil {
		return Range{}, fmt.Errorf("parse end: %w", err)
	}
	return New(s, e)
}

// ParseTime 解析单个时间点，未带时区的写法按 UTC 处理。
func ParseTime(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}, errors.New("empty time value")
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %s", raw)
}

// Contains 判断 t 是否落在 [Start, End) 内。
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Days 返回区间覆盖的每一个 UTC 自然日（零点），End 恰为零点时不计入当天。
func (r Range) Days() []time.Time {
	if !r.End.After(r.Start) {
		return nil
	}
	first := StartOfDay(r.Start)
	last := StartOfDay(r.End.Add(-time.Nanosecond))

	var days []time.Time
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r Range) String() string {
	return r.Start.Format(time.RFC3339) + "/" + r.End.Format(time.RFC3339)
}

// StartOfDay 返回 t 所在 UTC 日的零点。
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
