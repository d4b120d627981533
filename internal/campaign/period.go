package campaign

import (
	"strings"
	"time"
)

// Period is the canonical reporting window shared by every source.
type Period string

const (
	PeriodToday     Period = "today"
	PeriodYesterday Period = "yesterday"
	PeriodLast7d    Period = "last_7d"
)

// Periods lists every supported period.
var Periods = []Period{PeriodToday, PeriodYesterday, PeriodLast7d}

// ParsePeriod maps unknown or empty input to today.
func ParsePeriod(s string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodYesterday:
		return PeriodYesterday
	case PeriodLast7d:
		return PeriodLast7d
	default:
		return PeriodToday
	}
}

// DateRange returns inclusive YYYY-MM-DD bounds of p relative to now (UTC).
func (p Period) DateRange(now time.Time) (start, end string) {
	const layout = "2006-01-02"
	now = now.UTC()
	day := 24 * time.Hour
	switch ParsePeriod(string(p)) {
	case PeriodYesterday:
		y := now.Add(-day).Format(layout)
		return y, y
	case PeriodLast7d:
		return now.Add(-7 * day).Format(layout), now.Format(layout)
	default:
		t := now.Format(layout)
		return t, t
	}
}
