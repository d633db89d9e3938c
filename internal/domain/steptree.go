package domain

import "slices"

// StepTree is the two-level in-memory view of a task's flat step rows:
// parents ordered by sort order, and each parent's children ordered among
// themselves only.
type StepTree struct {
	Parents          []Step
	ChildrenByParent map[string][]Step
}

// BuildStepTree partitions a flat step list into ordered parents and a
// parent-id to ordered-children map. A child whose parent id is absent from
// the input is an orphan and is dropped rather than surfaced.
func BuildStepTree(steps []Step) StepTree {
	parents := make([]Step, 0, len(steps))
	parentIDs := make(map[string]struct{}, len(steps))
	for _, s := range steps {
		if s.IsParent() {
			parents = append(parents, s)
			parentIDs[s.ID] = struct{}{}
		}
	}
	slices.SortStableFunc(parents, func(a, b Step) int {
		return a.SortOrder - b.SortOrder
	})

	children := make(map[string][]Step)
	for _, s := range steps {
		if s.IsParent() {
			continue
		}
		if _, ok := parentIDs[*s.ParentStepID]; !ok {
			continue
		}
		children[*s.ParentStepID] = append(children[*s.ParentStepID], s)
	}
	for id := range children {
		slices.SortStableFunc(children[id], func(a, b Step) int {
			return a.SortOrder - b.SortOrder
		})
	}

	return StepTree{Parents: parents, ChildrenByParent: children}
}

// Children returns the ordered child list for a parent id, or nil.
func (t StepTree) Children(parentID string) []Step {
	return t.ChildrenByParent[parentID]
}

// Parent looks up a parent step by id.
func (t StepTree) Parent(parentID string) (Step, bool) {
	for _, p := range t.Parents {
		if p.ID == parentID {
			return p, true
		}
	}
	return Step{}, false
}
