package domain

// ReorderDirection selects which neighbor a sibling swap targets.
type ReorderDirection int

const (
	MoveUp ReorderDirection = iota
	MoveDown
)

// SortWrite is one sort-order write produced by a reorder plan.
type SortWrite struct {
	ID        string
	SortOrder int
}

// PlanReorder computes the writes for moving the step at index i one slot
// up or down within its ordered sibling slice. Moves past either boundary
// are no-ops and return nil. A swap touches exactly the two affected rows;
// all other siblings keep their stored sort orders.
func PlanReorder(siblings []Step, i int, dir ReorderDirection) []SortWrite {
	if i < 0 || i >= len(siblings) {
		return nil
	}
	j := i + 1
	if dir == MoveUp {
		j = i - 1
	}
	if j < 0 || j >= len(siblings) {
		return nil
	}
	return []SortWrite{
		{ID: siblings[i].ID, SortOrder: siblings[j].SortOrder},
		{ID: siblings[j].ID, SortOrder: siblings[i].SortOrder},
	}
}
