package domain

import "math"

// WeightAssignment describes one weight write produced by a rebalance.
type WeightAssignment struct {
	ID     string
	Weight float64
}

// ToggleChildResult describes the write set produced by toggling a child
// item: the child's new flag, the parent's reconciled flag, and the task
// progress recomputed with the updated values.
type ToggleChildResult struct {
	ChildComplete  bool
	ParentComplete bool
	ParentChanged  bool
	TaskProgress   float64
}

// EffectiveComplete returns a parent step's authoritative completion: all
// children complete when children exist, the stored flag otherwise. The
// stored flag is never trusted once a step has children.
func EffectiveComplete(parent Step, children []Step) bool {
	if len(children) == 0 {
		return parent.Complete
	}
	for _, c := range children {
		if !c.Complete {
			return false
		}
	}
	return true
}

// TaskProgress computes the weighted completion fraction over the step
// tree's parents. An empty tree yields 0.
func TaskProgress(tree StepTree) float64 {
	return progressWith(tree, "", false, false)
}

// ProgressWithOverride computes task progress with one parent's effective
// completion substituted, as required after a toggle whose write has not been
// observed yet.
func ProgressWithOverride(tree StepTree, overrideID string, overrideComplete bool) float64 {
	return progressWith(tree, overrideID, overrideComplete, true)
}

// progressWith sums weight × effective completion over all parents.
func progressWith(tree StepTree, overrideID string, overrideComplete, hasOverride bool) float64 {
	sum := 0.0
	for _, p := range tree.Parents {
		complete := EffectiveComplete(p, tree.Children(p.ID))
		if hasOverride && p.ID == overrideID {
			complete = overrideComplete
		}
		if complete {
			sum += p.Weight
		}
	}
	return sum
}

// RebalanceWeights assigns every parent an equal share 1/N, rounded to six
// decimal places to bound drift across repeated rebalances. Zero parents
// yields an empty write set.
func RebalanceWeights(parents []Step) []WeightAssignment {
	if len(parents) == 0 {
		return nil
	}
	weight := RoundWeight(1 / float64(len(parents)))
	out := make([]WeightAssignment, 0, len(parents))
	for _, p := range parents {
		out = append(out, WeightAssignment{ID: p.ID, Weight: weight})
	}
	return out
}

// ToggleParent flips a childless parent's stored completion and returns the
// new value. A parent that owns children auto-completes from its children and
// must not be toggled directly.
func ToggleParent(parent Step, children []Step) (bool, error) {
	if len(children) > 0 {
		return parent.Complete, ErrStepHasChildren
	}
	return !parent.Complete, nil
}

// ToggleChild flips a child item's completion and reconciles the owning
// parent: the parent's stored flag is rewritten only when the derived value
// disagrees with it, and task progress is recomputed using the updated
// effective value for the affected parent.
func ToggleChild(child Step, parent Step, tree StepTree) ToggleChildResult {
	newComplete := !child.Complete

	allComplete := true
	for _, sibling := range tree.Children(parent.ID) {
		done := sibling.Complete
		if sibling.ID == child.ID {
			done = newComplete
		}
		if !done {
			allComplete = false
			break
		}
	}

	return ToggleChildResult{
		ChildComplete:  newComplete,
		ParentComplete: allComplete,
		ParentChanged:  allComplete != parent.Complete,
		TaskProgress:   ProgressWithOverride(tree, parent.ID, allComplete),
	}
}

// RoundWeight rounds a weight fraction to six decimal places before
// persistence.
func RoundWeight(w float64) float64 {
	return math.Round(w*1e6) / 1e6
}
