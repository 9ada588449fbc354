package sdc

import (
	"strings"
	"time"

	"github.com/mmsync/mmsync/internal/trange"
)

const (
	// BurstRate 是高时间分辨率（burst）模式的数据率标识。
	BurstRate = "brst"

	// burstLookback 为 burst 文件跨日回看的窗口：请求起点距午夜不足该值时，
	// 查询窗口向前一天再延伸同样长度。
	burstLookback = 600 * time.Second

	dateParamLayout     = "2006-01-02"
	dateTimeParamLayout = "2006-01-02-15-04-05"
)

// QueryWindow 是发往 file_info 接口的时间窗口。
type QueryWindow struct {
	Start      time.Time
	End        time.Time
	StartParam string
	EndParam   string
}

// IsBurst reports whether rate is the burst data rate.
func IsBurst(rate string) bool {
	return strings.EqualFold(strings.TrimSpace(rate), BurstRate)
}

// Window 将请求区间扩展为整日查询窗口。end 提前 100ms，避免取到下一天的文件；
// burst 模式下若起点落在午夜后 600 秒内，起点再回退 600 秒到前一天。
func Window(r trange.Range, rate string) QueryWindow {
	start := trange.StartOfDay(r.Start)
	end := r.End.Add(-100 * time.Millisecond)

	w := QueryWindow{
		Start:      start,
		End:        end,
		StartParam: start.Format(dateParamLayout),
		EndParam:   end.Format(dateTimeParamLayout),
	}

	if IsBurst(rate) && r.Start.Sub(start) <= burstLookback {
		w.Start = start.Add(-burstLookback)
		w.StartParam = w.Start.Format(dateTimeParamLayout)
	}
	return w
}
