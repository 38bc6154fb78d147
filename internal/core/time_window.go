package core

import (
	"time"

	"github.com/samber/lo"
)

// UsageRange is the symbolic window over which spend is aggregated.
type UsageRange string

const (
	UsageRange1d UsageRange = "1d"
	UsageRange3d UsageRange = "3d"
	UsageRange7d UsageRange = "7d"
	UsageRange1m UsageRange = "1m"

	DefaultUsageRange = UsageRange7d
)

// DateLayout is the calendar-day format used for range bounds.
const DateLayout = "2006-01-02"

var ValidUsageRanges = []UsageRange{
	UsageRange1d,
	UsageRange3d,
	UsageRange7d,
	UsageRange1m,
}

func (r UsageRange) Valid() bool {
	for _, v := range ValidUsageRanges {
		if v == r {
			return true
		}
	}
	return false
}

func (r UsageRange) Label() string {
	switch r {
	case UsageRange1d:
		return "Today"
	case UsageRange3d:
		return "Last 3 days"
	case UsageRange7d:
		return "Last 7 days"
	case UsageRange1m:
		return "Last 1 month"
	default:
		return "Custom"
	}
}

// ParseUsageRange returns the default range for empty or unknown input.
func ParseUsageRange(s string) UsageRange {
	r := UsageRange(s)
	if r.Valid() {
		return r
	}
	return DefaultUsageRange
}

// ComputeRangeDates returns the inclusive [start, end] calendar days for r,
// evaluated in now's location. end is always today. Unknown ranges use the
// 7-day window.
func ComputeRangeDates(r UsageRange, now time.Time) (start, end string) {
	end = now.Format(DateLayout)
	from := now
	switch r {
	case UsageRange1d:
	case UsageRange3d:
		from = now.AddDate(0, 0, -2)
	case UsageRange1m:
		from = now.AddDate(0, -1, 0)
	default:
		from = now.AddDate(0, 0, -6)
	}
	return from.Format(DateLayout), end
}

// ParseDay parses a calendar day as a UTC midnight instant.
func ParseDay(day string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, day, time.UTC)
}

// AddDays shifts a calendar day by n days. Invalid input is returned as is.
func AddDays(day string, n int) string {
	t, err := ParseDay(day)
	if err != nil {
		return day
	}
	return t.AddDate(0, 0, n).Format(DateLayout)
}

// DayBounds returns the unix seconds of [day 00:00 UTC, next day 00:00 UTC).
func DayBounds(start, end string) (int64, int64, error) {
	s, err := ParseDay(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return 0, 0, err
	}
	return s.Unix(), e.AddDate(0, 0, 1).Unix(), nil
}

// ListDatesInclusive enumerates every calendar day in [start, end].
func ListDatesInclusive(start, end string) []string {
	s, err := ParseDay(start)
	if err != nil {
		return nil
	}
	e, err := ParseDay(end)
	if err != nil {
		return nil
	}
	var out []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		out = append(out, d.Format(DateLayout))
	}
	return out
}

type DateSpan struct {
	Start string
	End   string
}

// ChunkDateRange splits [start, end] into consecutive spans of at most
// chunkDays days. The last span always ends on end.
func ChunkDateRange(start, end string, chunkDays int) []DateSpan {
	if chunkDays <= 0 {
		chunkDays = 1
	}
	days := ListDatesInclusive(start, end)
	return lo.Map(lo.Chunk(days, chunkDays), func(chunk []string, _ int) DateSpan {
		return DateSpan{Start: chunk[0], End: chunk[len(chunk)-1]}
	})
}
