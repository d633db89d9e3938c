package domain

import (
	"slices"
	"strings"
	"time"
)

// Step represents one checklist step within a task. A step with a nil
// ParentStepID is a top-level parent; a non-nil ParentStepID marks a child
// item owned by exactly one parent.
type Step struct {
	ID           string
	TaskID       string
	ParentStepID *string
	Name         string
	Weight       float64
	Complete     bool
	SortOrder    int
	Status       TaskStatus
	AssignedTo   string
	StartDate    *time.Time
	DueDate      *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StepInput holds input values for constructing a step.
type StepInput struct {
	ID           string
	TaskID       string
	ParentStepID *string
	Name         string
	Weight       float64
	SortOrder    int
}

// NewStep constructs a validated step. New steps start incomplete; weight is
// meaningful only for parents and is assigned by rebalancing.
func NewStep(in StepInput, now time.Time) (Step, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.TaskID = strings.TrimSpace(in.TaskID)
	in.Name = strings.TrimSpace(in.Name)

	if in.ID == "" {
		return Step{}, ErrInvalidID
	}
	if in.TaskID == "" {
		return Step{}, ErrInvalidTaskID
	}
	if in.Name == "" {
		return Step{}, ErrInvalidName
	}
	if in.Weight < 0 || in.Weight > 1 {
		return Step{}, ErrInvalidWeight
	}
	if in.SortOrder < 0 {
		return Step{}, ErrInvalidSortOrder
	}
	var parentID *string
	if in.ParentStepID != nil {
		trimmed := strings.TrimSpace(*in.ParentStepID)
		if trimmed == "" {
			return Step{}, ErrInvalidID
		}
		parentID = &trimmed
	}

	return Step{
		ID:           in.ID,
		TaskID:       in.TaskID,
		ParentStepID: parentID,
		Name:         in.Name,
		Weight:       in.Weight,
		SortOrder:    in.SortOrder,
		Status:       TaskStatusNotStarted,
		CreatedAt:    now.UTC(),
		UpdatedAt:    now.UTC(),
	}, nil
}

// IsParent reports whether the step is a top-level parent step.
func (s Step) IsParent() bool {
	return s.ParentStepID == nil
}

// Rename renames the step.
func (s *Step) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	s.Name = name
	s.UpdatedAt = now.UTC()
	return nil
}

// SetComplete records a completion flag, stored or derived.
func (s *Step) SetComplete(complete bool, now time.Time) {
	s.Complete = complete
	s.UpdatedAt = now.UTC()
}

// SetWeight records a rebalanced weight.
func (s *Step) SetWeight(weight float64, now time.Time) error {
	if weight < 0 || weight > 1 {
		return ErrInvalidWeight
	}
	s.Weight = weight
	s.UpdatedAt = now.UTC()
	return nil
}

// SetSortOrder records a reordered sibling position.
func (s *Step) SetSortOrder(order int, now time.Time) error {
	if order < 0 {
		return ErrInvalidSortOrder
	}
	s.SortOrder = order
	s.UpdatedAt = now.UTC()
	return nil
}

// SetStatus records a per-step scheduling status.
func (s *Step) SetStatus(status TaskStatus, now time.Time) error {
	if !slices.Contains(validTaskStatuses, status) {
		return ErrInvalidStatus
	}
	s.Status = status
	s.UpdatedAt = now.UTC()
	return nil
}

// SetAssignedTo records the free-text assignee.
func (s *Step) SetAssignedTo(assignedTo string, now time.Time) {
	s.AssignedTo = strings.TrimSpace(assignedTo)
	s.UpdatedAt = now.UTC()
}

// SetSchedule sets or clears the step's calendar date range.
func (s *Step) SetSchedule(start, due *time.Time, now time.Time) error {
	ns, nd, err := normalizeDateRange(start, due)
	if err != nil {
		return err
	}
	s.StartDate = ns
	s.DueDate = nd
	s.UpdatedAt = now.UTC()
	return nil
}
