// Package timeframe provides date-window primitives for the analytics engine.
// All boundaries are UTC days; daily metrics are keyed by UTC midnight.
package timeframe

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a range ends before it starts.
var ErrInvalidRange = errors.New("timeframe: range end precedes start")

// Granularity identifies the rollup bucket size.
type Granularity string

const (
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// Valid reports whether g is a known granularity.
func (g Granularity) Valid() bool {
	return g == GranularityWeekly || g == GranularityMonthly
}

// Range is an inclusive day range.
type Range struct {
	From time.Time
	To   time.Time
}

// NewRange builds a validated inclusive day range. Both ends are truncated
// to UTC midnight.
func NewRange(from, to time.Time) (Range, error) {
	r := Range{From: DayOf(from), To: DayOf(to)}
	if r.To.Before(r.From) {
		return Range{}, fmt.Errorf("%w: %s > %s", ErrInvalidRange,
			r.From.Format("2006-01-02"), r.To.Format("2006-01-02"))
	}
	return r, nil
}

// Days returns the number of days covered by the range, inclusive.
func (r Range) Days() int {
	return int(r.To.Sub(r.From).Hours()/24) + 1
}

// DayOf truncates t to UTC midnight.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WeekStart returns the Monday of the ISO week containing t, at UTC midnight.
func WeekStart(t time.Time) time.Time {
	d := DayOf(t)
	// time.Weekday has Sunday == 0; ISO weeks start on Monday.
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthStart returns the first day of the calendar month containing t, at UTC midnight.
func MonthStart(t time.Time) time.Time {
	d := DayOf(t)
	return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// PeriodStart truncates t to the start of the period for the given granularity.
func PeriodStart(g Granularity, t time.Time) time.Time {
	if g == GranularityMonthly {
		return MonthStart(t)
	}
	return WeekStart(t)
}

// TrailingWeeks enumerates weeksBack consecutive 7-day windows ending at end,
// most recent first. Each window is inclusive of both endpoints.
func TrailingWeeks(end time.Time, weeksBack int) []Range {
	windows := make([]Range, 0, weeksBack)
	to := DayOf(end)
	for i := 0; i < weeksBack; i++ {
		from := to.AddDate(0, 0, -6)
		windows = append(windows, Range{From: from, To: to})
		to = from.AddDate(0, 0, -1)
	}
	return windows
}
