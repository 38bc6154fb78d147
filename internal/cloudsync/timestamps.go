package cloudsync

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/janekbaraniewski/spendboard/internal/parsers"
)

// newDataSentinel is what the backend reports for a profile that was never
// written.
const newDataSentinel = "new-data"

// msThreshold separates epoch seconds from epoch milliseconds.
const msThreshold = 1e11

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp reads a server sync timestamp as epoch milliseconds. ISO
// strings and epoch numbers (seconds or milliseconds) are accepted; empty,
// sentinel and unparseable values read as 0.
func ParseTimestamp(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return parseTimestampString(t)
	default:
		if f := parsers.Number(t); f != nil {
			return epochMillis(*f)
		}
		return 0
	}
}

func parseTimestampString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, newDataSentinel) {
		return 0
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return epochMillis(f)
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

func epochMillis(f float64) int64 {
	if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	if f < msThreshold {
		f *= 1000
	}
	return int64(f)
}

func formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
