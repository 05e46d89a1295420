// Copyright (c) 2025 BVK Chaitanya

package timerange

import (
	"time"
)

// namedRanges maps the user-friendly period names to functions computing the
// period around a reference time. Days, weeks and months begin at midnight in
// the reference time's location and weeks begin on Sunday.
var namedRanges = map[string]func(now time.Time) *Range{
	"today": func(now time.Time) *Range {
		return days(midnight(now), 1)
	},
	"yesterday": func(now time.Time) *Range {
		return days(midnight(now).AddDate(0, 0, -1), 1)
	},
	"this-week": func(now time.Time) *Range {
		return days(weekStart(now), 7)
	},
	"last-week": func(now time.Time) *Range {
		return days(weekStart(now).AddDate(0, 0, -7), 7)
	},
	"this-month": func(now time.Time) *Range {
		first := monthStart(now)
		return &Range{Begin: first, End: first.AddDate(0, 1, 0)}
	},
	"last-month": func(now time.Time) *Range {
		first := monthStart(now)
		return &Range{Begin: first.AddDate(0, -1, 0), End: first}
	},
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func weekStart(t time.Time) time.Time {
	return midnight(t).AddDate(0, 0, -int(t.Weekday()))
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// days returns the range of n calendar days from begin. AddDate keeps the
// boundaries at midnight across daylight saving changes.
func days(begin time.Time, n int) *Range {
	return &Range{Begin: begin, End: begin.AddDate(0, 0, n)}
}

func nowIn(zone *time.Location) time.Time {
	if zone == nil {
		zone = time.Local
	}
	return time.Now().In(zone)
}

// Last returns the range covering the most recent duration d, open at the
// end.
func Last(d time.Duration) *Range {
	return &Range{Begin: time.Now().Add(-d)}
}

// Today returns the current calendar day in the zone, which defaults to the
// local time zone.
func Today(zone *time.Location) *Range {
	return namedRanges["today"](nowIn(zone))
}
