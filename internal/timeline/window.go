// Package timeline provides the pure calendar-day geometry and pointer
// gesture state machine behind the gantt view: mapping dates to columns and
// pixel offsets inside a visible window, and translating draw/drag gestures
// into committed date ranges.
package timeline

import "time"

// Day is 24 hours exactly. All dates in this package are normalized to
// midnight UTC, so day arithmetic never crosses a DST boundary.
const Day = 24 * time.Hour

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a window over the inclusive day range. Both endpoints are
// normalized to midnight UTC; an end before the start collapses to a
// single-day window at the start.
func NewWindow(start, end time.Time) Window {
	s := Normalize(start)
	e := Normalize(end)
	if e.Before(s) {
		e = s
	}
	return Window{Start: s, End: e}
}

// DefaultWindow derives the visible window from the dates carried by the
// current tasks. With no dates at all the window spans a week back and three
// weeks ahead of today; otherwise it pads the data's extent with three days
// of lookback and a week of lookahead for drawing new future ranges.
func DefaultWindow(dates []time.Time, today time.Time) Window {
	today = Normalize(today)
	if len(dates) == 0 {
		return Window{Start: today.Add(-7 * Day), End: today.Add(21 * Day)}
	}
	min := Normalize(dates[0])
	max := min
	for _, d := range dates[1:] {
		n := Normalize(d)
		if n.Before(min) {
			min = n
		}
		if n.After(max) {
			max = n
		}
	}
	return Window{Start: min.Add(-3 * Day), End: max.Add(7 * Day)}
}

// Len returns the number of days in the window.
func (w Window) Len() int {
	return DaysBetween(w.Start, w.End) + 1
}

// Days materializes every calendar day in the window, in order.
func (w Window) Days() []time.Time {
	days := make([]time.Time, 0, w.Len())
	for d := w.Start; !d.After(w.End); d = d.Add(Day) {
		days = append(days, d)
	}
	return days
}

// Contains reports whether the date falls inside the window.
func (w Window) Contains(date time.Time) bool {
	d := Normalize(date)
	return !d.Before(w.Start) && !d.After(w.End)
}

// Day returns the date at a column index, clamped to the window bounds.
func (w Window) Day(col int) time.Time {
	if col < 0 {
		col = 0
	}
	if last := w.Len() - 1; col > last {
		col = last
	}
	return w.Start.Add(time.Duration(col) * Day)
}

// Normalize truncates a timestamp to midnight UTC.
func Normalize(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the signed whole-day distance from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Normalize(b).Sub(Normalize(a)) / Day)
}

// IsWeekend reports whether the date falls on a Saturday or Sunday.
func IsWeekend(date time.Time) bool {
	wd := Normalize(date).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsToday reports whether two timestamps fall on the same calendar day.
func IsToday(date, today time.Time) bool {
	return Normalize(date).Equal(Normalize(today))
}
