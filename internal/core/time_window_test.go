package core

import (
	"testing"
	"time"
)

func TestComputeRangeDates(t *testing.T) {
	now := time.Date(2026, time.October, 17, 15, 4, 5, 0, time.Local)
	tests := []struct {
		r        UsageRange
		wantDays int
	}{
		{UsageRange1d, 0},
		{UsageRange3d, 2},
		{UsageRange7d, 6},
		{UsageRange1m, 30},
		{UsageRange("bogus"), 6},
	}
	for _, tt := range tests {
		t.Run(string(tt.r), func(t *testing.T) {
			start, end := ComputeRangeDates(tt.r, now)
			if end != "2026-10-17" {
				t.Fatalf("end = %s, want 2026-10-17", end)
			}
			s, err := ParseDay(start)
			if err != nil {
				t.Fatalf("ParseDay(%q) error: %v", start, err)
			}
			e, _ := ParseDay(end)
			if s.After(e) {
				t.Fatalf("start %s after end %s", start, end)
			}
			if got := int(e.Sub(s).Hours() / 24); got != tt.wantDays {
				t.Errorf("span = %d days, want %d", got, tt.wantDays)
			}
		})
	}
}

func TestComputeRangeDates_MonthUsesCalendarSubtraction(t *testing.T) {
	now := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.Local)
	start, _ := ComputeRangeDates(UsageRange1m, now)
	if start != "2026-02-15" {
		t.Errorf("start = %s, want 2026-02-15", start)
	}
}

func TestParseUsageRange(t *testing.T) {
	if got := ParseUsageRange("3d"); got != UsageRange3d {
		t.Errorf("ParseUsageRange(3d) = %s", got)
	}
	if got := ParseUsageRange(""); got != UsageRange7d {
		t.Errorf("ParseUsageRange(\"\") = %s, want 7d", got)
	}
	if got := ParseUsageRange("3m"); got != UsageRange7d {
		t.Errorf("ParseUsageRange(3m) = %s, want 7d", got)
	}
}

func TestUsageRangeLabel(t *testing.T) {
	tests := []struct {
		r    UsageRange
		want string
	}{
		{UsageRange1d, "Today"},
		{UsageRange3d, "Last 3 days"},
		{UsageRange7d, "Last 7 days"},
		{UsageRange1m, "Last 1 month"},
		{UsageRange("x"), "Custom"},
	}
	for _, tt := range tests {
		if got := tt.r.Label(); got != tt.want {
			t.Errorf("UsageRange(%q).Label() = %q, want %q", tt.r, got, tt.want)
		}
	}
}

func TestListDatesInclusive(t *testing.T) {
	got := ListDatesInclusive("2026-02-27", "2026-03-02")
	want := []string{"2026-02-27", "2026-02-28", "2026-03-01", "2026-03-02"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %s, want %s", i, got[i], want[i])
		}
	}
	if got := ListDatesInclusive("2026-03-02", "2026-03-01"); len(got) != 0 {
		t.Errorf("reversed range = %v, want empty", got)
	}
}

func TestDayBounds(t *testing.T) {
	start, end, err := DayBounds("2026-10-11", "2026-10-17")
	if err != nil {
		t.Fatalf("DayBounds error: %v", err)
	}
	wantStart := time.Date(2026, 10, 11, 0, 0, 0, 0, time.UTC).Unix()
	wantEnd := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC).Unix()
	if start != wantStart || end != wantEnd {
		t.Errorf("DayBounds = (%d, %d), want (%d, %d)", start, end, wantStart, wantEnd)
	}
}

func TestAddDays(t *testing.T) {
	if got := AddDays("2026-12-30", 3); got != "2027-01-02" {
		t.Errorf("AddDays = %s, want 2027-01-02", got)
	}
}

func TestChunkDateRange(t *testing.T) {
	got := ChunkDateRange("2026-09-17", "2026-10-17", 7)
	want := []DateSpan{
		{"2026-09-17", "2026-09-23"},
		{"2026-09-24", "2026-09-30"},
		{"2026-10-01", "2026-10-07"},
		{"2026-10-08", "2026-10-14"},
		{"2026-10-15", "2026-10-17"},
	}
	if len(got) != len(want) {
		t.Fatalf("chunks = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	single := ChunkDateRange("2026-10-17", "2026-10-17", 7)
	if len(single) != 1 || single[0].Start != "2026-10-17" || single[0].End != "2026-10-17" {
		t.Errorf("single-day chunks = %v", single)
	}
}
