package timeline

import "testing"

func testGeometry() Geometry {
	return NewGeometry(NewWindow(day(2026, 8, 1), day(2026, 8, 31)), DefaultDayWidth)
}

func TestColumnRoundTrip(t *testing.T) {
	g := testGeometry()
	days := g.Window.Days()
	for _, d := range days {
		col := g.ColumnOf(d)
		if !days[col].Equal(d) {
			t.Fatalf("timelineDays[columnOf(%v)] = %v", d, days[col])
		}
	}
}

func TestColumnOfOutsideWindow(t *testing.T) {
	g := testGeometry()
	if got := g.ColumnOf(day(2026, 7, 29)); got != -3 {
		t.Fatalf("column before window = %d, want -3", got)
	}
	if got := g.ColumnOf(day(2026, 9, 2)); got != 32 {
		t.Fatalf("column after window = %d, want 32", got)
	}
}

func TestBarGeometryFiveDayRange(t *testing.T) {
	g := testGeometry()
	start := day(2026, 8, 3)
	due := day(2026, 8, 7)
	bar := g.BarGeometry(&start, &due)
	if !bar.Visible {
		t.Fatal("expected visible bar")
	}
	if bar.Left != 72 {
		t.Fatalf("left = %d, want 72", bar.Left)
	}
	if bar.Width != 180 {
		t.Fatalf("width = %d, want 180", bar.Width)
	}
}

func TestBarGeometrySingleDate(t *testing.T) {
	g := testGeometry()
	d := day(2026, 8, 5)

	bar := g.BarGeometry(&d, nil)
	if !bar.Visible || bar.Width != DefaultDayWidth || bar.Left != 4*DefaultDayWidth {
		t.Fatalf("start-only bar %#v", bar)
	}
	bar = g.BarGeometry(nil, &d)
	if !bar.Visible || bar.Width != DefaultDayWidth || bar.Left != 4*DefaultDayWidth {
		t.Fatalf("due-only bar %#v", bar)
	}
	bar = g.BarGeometry(nil, nil)
	if bar.Visible {
		t.Fatalf("dateless bar should be invisible, got %#v", bar)
	}
}

func TestColumnAtClampsAndFloors(t *testing.T) {
	g := testGeometry()
	if got := g.ColumnAt(0); got != 0 {
		t.Fatalf("ColumnAt(0) = %d", got)
	}
	if got := g.ColumnAt(36); got != 1 {
		t.Fatalf("ColumnAt(36) = %d", got)
	}
	if got := g.ColumnAt(71); got != 1 {
		t.Fatalf("ColumnAt(71) = %d", got)
	}
	if got := g.ColumnAt(-5); got != 0 {
		t.Fatalf("ColumnAt(-5) should clamp to 0, got %d", got)
	}
	if got := g.ColumnAt(100000); got != 30 {
		t.Fatalf("ColumnAt past end should clamp to last column, got %d", got)
	}
}

func TestTodayOffset(t *testing.T) {
	g := testGeometry()
	off, ok := g.TodayOffset(day(2026, 8, 11))
	if !ok || off != 10*DefaultDayWidth {
		t.Fatalf("TodayOffset = %d,%v", off, ok)
	}
	if _, ok := g.TodayOffset(day(2026, 10, 1)); ok {
		t.Fatal("today outside window should report false")
	}
}

func TestMonthGroups(t *testing.T) {
	w := NewWindow(day(2026, 8, 30), day(2026, 9, 2))
	groups := MonthGroups(w.Days())
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %#v", groups)
	}
	if groups[0].Label != "Aug 2026" || groups[0].SpanDays != 2 {
		t.Fatalf("unexpected first group %#v", groups[0])
	}
	if groups[1].Label != "Sep 2026" || groups[1].SpanDays != 2 {
		t.Fatalf("unexpected second group %#v", groups[1])
	}
}

func TestNewGeometryDefaultWidth(t *testing.T) {
	g := NewGeometry(NewWindow(day(2026, 8, 1), day(2026, 8, 2)), 0)
	if g.DayWidth != DefaultDayWidth {
		t.Fatalf("DayWidth = %d", g.DayWidth)
	}
}
