// Package records shapes attendance rows for display and export: date
// ranges, query filters and CSV rendering of the live present list.
package records

import (
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/attendance-kiosk/internal/constants"
)

// Range selects which days of attendance a query covers.
type Range string

// Supported ranges. Each one ends today.
const (
	RangeToday Range = "today"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

// ParseRange parses a range name. An empty string selects the default range.
func ParseRange(s string) (Range, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		s = constants.DefaultRecordsRange
	}
	switch r := Range(s); r {
	case RangeToday, RangeWeek, RangeMonth, RangeYear:
		return r, nil
	default:
		return "", fmt.Errorf("unknown range %q (expected today, week, month or year)", s)
	}
}

// Bounds returns the first and last day (both at midnight, inclusive)
// covered by r relative to now. Weeks start on Monday.
func (r Range) Bounds(now time.Time) (start, end time.Time) {
	y, m, d := now.Date()
	end = time.Date(y, m, d, 0, 0, 0, 0, now.Location())

	switch r {
	case RangeWeek:
		offset := (int(end.Weekday()) + 6) % 7
		start = end.AddDate(0, 0, -offset)
	case RangeMonth:
		start = time.Date(y, m, 1, 0, 0, 0, 0, now.Location())
	case RangeYear:
		start = time.Date(y, time.January, 1, 0, 0, 0, 0, now.Location())
	default:
		start = end
	}
	return start, end
}

// Contains reports whether t falls on a day covered by r.
func (r Range) Contains(now, t time.Time) bool {
	start, end := r.Bounds(now)
	t = t.In(now.Location())
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return !day.Before(start) && !day.After(end)
}
