package timeline

import (
	"math"
	"time"
)

// Edge identifies which part of an existing bar a drag grabbed.
type Edge int

// EdgeLeft and related constants name the three drag hit zones.
const (
	EdgeLeft Edge = iota
	EdgeRight
	EdgeMove
)

type phase int

const (
	phaseIdle phase = iota
	phaseDrawing
	phaseDragging
)

// Commit is the date-range write produced by a finished gesture.
type Commit struct {
	TargetID string
	Start    time.Time
	Due      time.Time
}

// Interaction is the single in-flight pointer gesture over a timeline view.
// Rows without dates are a draw surface for new ranges; rows with a bar
// expose left edge, right edge and body drag zones. Starting a new gesture
// while one is active discards the old one without committing.
type Interaction struct {
	geom  Geometry
	phase phase

	targetID string

	// drawing
	anchorCol int
	liveCol   int

	// dragging
	edge      Edge
	anchorX   int
	origStart time.Time
	origEnd   time.Time
	liveStart time.Time
	liveEnd   time.Time
	moved     bool
}

// NewInteraction builds an idle interaction over the given geometry.
func NewInteraction(geom Geometry) *Interaction {
	return &Interaction{geom: geom}
}

// Reset returns to idle over a new geometry, discarding any gesture.
func (it *Interaction) Reset(geom Geometry) {
	*it = Interaction{geom: geom}
}

// Idle reports whether no gesture is in flight.
func (it *Interaction) Idle() bool { return it.phase == phaseIdle }

// StartDraw begins drawing a new range on a dateless row, anchored at the
// column under the pointer.
func (it *Interaction) StartDraw(targetID string, x int) {
	col := it.geom.ColumnAt(x)
	it.reset()
	it.phase = phaseDrawing
	it.targetID = targetID
	it.anchorCol = col
	it.liveCol = col
}

// StartDrag begins resizing or moving an existing range.
func (it *Interaction) StartDrag(targetID string, edge Edge, x int, origStart, origEnd time.Time) {
	it.reset()
	it.phase = phaseDragging
	it.targetID = targetID
	it.edge = edge
	it.anchorX = x
	it.origStart = Normalize(origStart)
	it.origEnd = Normalize(origEnd)
	it.liveStart = it.origStart
	it.liveEnd = it.origEnd
}

// Move advances the live gesture state for a new pointer X. No-op while
// idle.
func (it *Interaction) Move(x int) {
	switch it.phase {
	case phaseDrawing:
		it.liveCol = it.geom.ColumnAt(x)
	case phaseDragging:
		delta := daysDelta(x-it.anchorX, it.geom.DayWidth)
		if delta != 0 {
			it.moved = true
		}
		shift := time.Duration(delta) * Day
		switch it.edge {
		case EdgeLeft:
			start := it.origStart.Add(shift)
			if start.After(it.origEnd) {
				start = it.origEnd
			}
			it.liveStart = start
			it.liveEnd = it.origEnd
		case EdgeRight:
			end := it.origEnd.Add(shift)
			if end.Before(it.origStart) {
				end = it.origStart
			}
			it.liveStart = it.origStart
			it.liveEnd = end
		case EdgeMove:
			it.liveStart = it.origStart.Add(shift)
			it.liveEnd = it.origEnd.Add(shift)
		}
	}
}

// Release ends the gesture and returns the commit, if any. A draw always
// commits, a click included: releasing on the anchor column writes a one-day
// range. A drag commits only when the pointer actually moved a whole day and
// the live dates differ from the originals; otherwise release is a plain
// click and the original dates stand.
func (it *Interaction) Release() (Commit, bool) {
	defer it.reset()
	switch it.phase {
	case phaseDrawing:
		lo, hi := it.anchorCol, it.liveCol
		if hi < lo {
			lo, hi = hi, lo
		}
		return Commit{
			TargetID: it.targetID,
			Start:    it.geom.Window.Day(lo),
			Due:      it.geom.Window.Day(hi),
		}, true
	case phaseDragging:
		if !it.moved {
			return Commit{}, false
		}
		if it.liveStart.Equal(it.origStart) && it.liveEnd.Equal(it.origEnd) {
			return Commit{}, false
		}
		return Commit{TargetID: it.targetID, Start: it.liveStart, Due: it.liveEnd}, true
	default:
		return Commit{}, false
	}
}

// DrawSpan returns the live draw range as ordered columns. ok is false
// unless a draw is in flight.
func (it *Interaction) DrawSpan() (targetID string, lo, hi int, ok bool) {
	if it.phase != phaseDrawing {
		return "", 0, 0, false
	}
	lo, hi = it.anchorCol, it.liveCol
	if hi < lo {
		lo, hi = hi, lo
	}
	return it.targetID, lo, hi, true
}

// DragSpan returns the live dragged date range. ok is false unless a drag
// is in flight.
func (it *Interaction) DragSpan() (targetID string, start, end time.Time, ok bool) {
	if it.phase != phaseDragging {
		return "", time.Time{}, time.Time{}, false
	}
	return it.targetID, it.liveStart, it.liveEnd, true
}

func (it *Interaction) reset() {
	geom := it.geom
	*it = Interaction{geom: geom}
}

// daysDelta converts a pixel delta to the nearest whole-day delta. Ties
// round toward positive infinity, so a drag of exactly half a day-width to
// the left stays put.
func daysDelta(dx, dayWidth int) int {
	return int(math.Floor(float64(dx)/float64(dayWidth) + 0.5))
}
