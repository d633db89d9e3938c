package timeline

import "time"

// DefaultDayWidth is the horizontal size of one day column in pixels (or
// terminal cells).
const DefaultDayWidth = 36

// Geometry maps calendar dates to columns and pixel offsets inside a window.
// It is a pure value: all methods are side-effect free.
type Geometry struct {
	Window   Window
	DayWidth int
}

// NewGeometry builds a geometry over the window. A non-positive day width
// falls back to the default.
func NewGeometry(w Window, dayWidth int) Geometry {
	if dayWidth <= 0 {
		dayWidth = DefaultDayWidth
	}
	return Geometry{Window: w, DayWidth: dayWidth}
}

// ColumnOf returns the 0-based day column of a date relative to the window
// start. The result may be negative or past the window's end for dates
// outside the window; callers clamp before indexing, never before computing
// drag offsets.
func (g Geometry) ColumnOf(date time.Time) int {
	return DaysBetween(g.Window.Start, date)
}

// PixelLeft returns the left pixel offset of a date's column.
func (g Geometry) PixelLeft(date time.Time) int {
	return g.ColumnOf(date) * g.DayWidth
}

// ColumnAt converts a pixel offset back to a day column, clamped to the
// window bounds.
func (g Geometry) ColumnAt(x int) int {
	col := x / g.DayWidth
	if x < 0 && x%g.DayWidth != 0 {
		col--
	}
	return g.clampColumn(col)
}

func (g Geometry) clampColumn(col int) int {
	if col < 0 {
		return 0
	}
	if last := g.Window.Len() - 1; col > last {
		return last
	}
	return col
}

// Bar is the rendered extent of a date range on the timeline.
type Bar struct {
	Left    int
	Width   int
	Visible bool
}

// BarGeometry computes the pixel extent of a possibly-partial date range:
// both dates give an inclusive multi-day bar, a single date gives a
// one-day marker, no dates gives an invisible bar.
func (g Geometry) BarGeometry(start, due *time.Time) Bar {
	switch {
	case start != nil && due != nil:
		return Bar{
			Left:    g.PixelLeft(*start),
			Width:   (DaysBetween(*start, *due) + 1) * g.DayWidth,
			Visible: true,
		}
	case start != nil:
		return Bar{Left: g.PixelLeft(*start), Width: g.DayWidth, Visible: true}
	case due != nil:
		return Bar{Left: g.PixelLeft(*due), Width: g.DayWidth, Visible: true}
	default:
		return Bar{}
	}
}

// TodayOffset returns the pixel offset of today's column and whether today
// is inside the window.
func (g Geometry) TodayOffset(today time.Time) (int, bool) {
	if !g.Window.Contains(today) {
		return 0, false
	}
	return g.PixelLeft(today), true
}

// MonthGroup is one run of consecutive days sharing a month header label.
type MonthGroup struct {
	Label    string
	SpanDays int
}

// MonthGroups run-length encodes the window's days by "Jan 2006" label for
// header rendering.
func MonthGroups(days []time.Time) []MonthGroup {
	var groups []MonthGroup
	for _, d := range days {
		label := d.Format("Jan 2006")
		if n := len(groups); n > 0 && groups[n-1].Label == label {
			groups[n-1].SpanDays++
			continue
		}
		groups = append(groups, MonthGroup{Label: label, SpanDays: 1})
	}
	return groups
}
