package timeline

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestDefaultWindowNoDates(t *testing.T) {
	today := day(2026, 8, 15)
	w := DefaultWindow(nil, today)
	if !w.Start.Equal(day(2026, 8, 8)) {
		t.Fatalf("start = %v, want 2026-08-08", w.Start)
	}
	if !w.End.Equal(day(2026, 9, 5)) {
		t.Fatalf("end = %v, want 2026-09-05", w.End)
	}
}

func TestDefaultWindowPadsExtent(t *testing.T) {
	dates := []time.Time{
		day(2026, 8, 20),
		day(2026, 8, 10),
		day(2026, 9, 2),
	}
	w := DefaultWindow(dates, day(2026, 8, 15))
	if !w.Start.Equal(day(2026, 8, 7)) {
		t.Fatalf("start = %v, want 2026-08-07", w.Start)
	}
	if !w.End.Equal(day(2026, 9, 9)) {
		t.Fatalf("end = %v, want 2026-09-09", w.End)
	}
}

func TestWindowDays(t *testing.T) {
	w := NewWindow(day(2026, 8, 30), day(2026, 9, 2))
	days := w.Days()
	if len(days) != 4 || w.Len() != 4 {
		t.Fatalf("expected 4 days, got %d", len(days))
	}
	if !days[0].Equal(day(2026, 8, 30)) || !days[3].Equal(day(2026, 9, 2)) {
		t.Fatalf("unexpected day range %v..%v", days[0], days[3])
	}
}

func TestWindowInvertedCollapses(t *testing.T) {
	w := NewWindow(day(2026, 8, 10), day(2026, 8, 1))
	if w.Len() != 1 || !w.Start.Equal(w.End) {
		t.Fatalf("inverted range should collapse, got %#v", w)
	}
}

func TestWindowDayClamps(t *testing.T) {
	w := NewWindow(day(2026, 8, 1), day(2026, 8, 5))
	if !w.Day(-3).Equal(day(2026, 8, 1)) {
		t.Fatalf("negative column should clamp to start")
	}
	if !w.Day(99).Equal(day(2026, 8, 5)) {
		t.Fatalf("overflow column should clamp to end")
	}
}

func TestDaysBetweenNormalizes(t *testing.T) {
	a := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 8, 3, 0, 1, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 2 {
		t.Fatalf("DaysBetween() = %d, want 2", got)
	}
	if got := DaysBetween(b, a); got != -2 {
		t.Fatalf("DaysBetween() = %d, want -2", got)
	}
}

func TestWeekendAndToday(t *testing.T) {
	sat := day(2026, 8, 29)
	if !IsWeekend(sat) || IsWeekend(day(2026, 8, 28)) {
		t.Fatal("weekend predicate wrong")
	}
	if !IsToday(time.Date(2026, 8, 28, 18, 0, 0, 0, time.UTC), day(2026, 8, 28)) {
		t.Fatal("same-day timestamps should match")
	}
	if IsToday(day(2026, 8, 27), day(2026, 8, 28)) {
		t.Fatal("different days should not match")
	}
}
