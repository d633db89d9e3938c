package domain

import (
	"slices"
	"strings"
	"time"
)

// Phase represents a manufacturing build phase.
type Phase string

// PhaseMP and related constants define the canonical phase progression.
const (
	PhaseMP         Phase = "MP"
	PhaseEVT        Phase = "EVT"
	PhaseDVT        Phase = "DVT"
	PhasePPVT       Phase = "PPVT"
	PhaseProduction Phase = "Production"
)

// PhaseOrder lists phases in canonical display/processing order.
var PhaseOrder = []Phase{PhaseMP, PhaseEVT, PhaseDVT, PhasePPVT, PhaseProduction}

// PhaseLabel returns the long display label for a phase.
func PhaseLabel(p Phase) string {
	switch p {
	case PhaseMP:
		return "MP — Mock-up Project"
	case PhaseEVT:
		return "EVT — Engineering Verification Test"
	case PhaseDVT:
		return "DVT — Design Verification Test"
	case PhasePPVT:
		return "PPVT — Pre-Production Validation Test"
	case PhaseProduction:
		return "Production"
	default:
		return string(p)
	}
}

// TaskStatus represents a selectable task state.
type TaskStatus string

// TaskStatusNotStarted and related constants define the valid task states.
const (
	TaskStatusNotStarted TaskStatus = "Not Started"
	TaskStatusInProgress TaskStatus = "In Progress"
	TaskStatusBlocked    TaskStatus = "Blocked"
	TaskStatusComplete   TaskStatus = "Complete"
)

var validTaskStatuses = []TaskStatus{
	TaskStatusNotStarted,
	TaskStatusInProgress,
	TaskStatusBlocked,
	TaskStatusComplete,
}

// Priority represents a selectable task priority.
type Priority string

// PriorityLow and related constants define the valid priorities.
const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Task represents one tracked task owned by a project version.
type Task struct {
	ID            string
	VersionID     string
	Name          string
	Phase         Phase
	Status        TaskStatus
	Priority      Priority
	Progress      float64
	AssignedTo    string
	BlockedReason string
	Notes         string
	StartDate     *time.Time
	DueDate       *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// TaskInput holds input values for constructing a task.
type TaskInput struct {
	ID         string
	VersionID  string
	Name       string
	Phase      Phase
	Priority   Priority
	AssignedTo string
	Notes      string
	StartDate  *time.Time
	DueDate    *time.Time
}

// NewTask constructs a validated task with zero progress.
func NewTask(in TaskInput, now time.Time) (Task, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.VersionID = strings.TrimSpace(in.VersionID)
	in.Name = strings.TrimSpace(in.Name)

	if in.ID == "" {
		return Task{}, ErrInvalidID
	}
	if in.VersionID == "" {
		return Task{}, ErrInvalidVersionID
	}
	if in.Name == "" {
		return Task{}, ErrInvalidName
	}
	if in.Phase == "" {
		in.Phase = PhaseMP
	}
	if !slices.Contains(PhaseOrder, in.Phase) {
		return Task{}, ErrInvalidPhase
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !slices.Contains(validPriorities, in.Priority) {
		return Task{}, ErrInvalidPriority
	}
	start, due, err := normalizeDateRange(in.StartDate, in.DueDate)
	if err != nil {
		return Task{}, err
	}

	return Task{
		ID:         in.ID,
		VersionID:  in.VersionID,
		Name:       in.Name,
		Phase:      in.Phase,
		Status:     TaskStatusNotStarted,
		Priority:   in.Priority,
		AssignedTo: strings.TrimSpace(in.AssignedTo),
		Notes:      strings.TrimSpace(in.Notes),
		StartDate:  start,
		DueDate:    due,
		CreatedAt:  now.UTC(),
		UpdatedAt:  now.UTC(),
	}, nil
}

// UpdateDetails updates the editable task fields. The blocked reason is kept
// only while the status is Blocked.
func (t *Task) UpdateDetails(name string, phase Phase, status TaskStatus, priority Priority, assignedTo, blockedReason, notes string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if !slices.Contains(PhaseOrder, phase) {
		return ErrInvalidPhase
	}
	if !slices.Contains(validTaskStatuses, status) {
		return ErrInvalidStatus
	}
	if !slices.Contains(validPriorities, priority) {
		return ErrInvalidPriority
	}
	t.Name = name
	t.Phase = phase
	t.Status = status
	t.Priority = priority
	t.AssignedTo = strings.TrimSpace(assignedTo)
	if status == TaskStatusBlocked {
		t.BlockedReason = strings.TrimSpace(blockedReason)
	} else {
		t.BlockedReason = ""
	}
	t.Notes = strings.TrimSpace(notes)
	t.UpdatedAt = now.UTC()
	return nil
}

// SetSchedule sets or clears the task's calendar date range.
func (t *Task) SetSchedule(start, due *time.Time, now time.Time) error {
	s, d, err := normalizeDateRange(start, due)
	if err != nil {
		return err
	}
	t.StartDate = s
	t.DueDate = d
	t.UpdatedAt = now.UTC()
	return nil
}

// SetProgress records a recomputed progress fraction. Weight rounding can
// push a complete task's sum a hair past 1; that overshoot clamps to 1.
func (t *Task) SetProgress(progress float64, now time.Time) error {
	const tolerance = 1e-5
	if progress < 0 || progress > 1+tolerance {
		return ErrInvalidProgress
	}
	if progress > 1 {
		progress = 1
	}
	t.Progress = progress
	t.UpdatedAt = now.UTC()
	return nil
}

// NormalizeDate truncates a timestamp to midnight UTC. All calendar-date
// comparisons in this package operate on day granularity.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// normalizeDateRange normalizes both endpoints and rejects an inverted range.
func normalizeDateRange(start, due *time.Time) (*time.Time, *time.Time, error) {
	var s, d *time.Time
	if start != nil {
		v := NormalizeDate(*start)
		s = &v
	}
	if due != nil {
		v := NormalizeDate(*due)
		d = &v
	}
	if s != nil && d != nil && s.After(*d) {
		return nil, nil, ErrInvalidDateRange
	}
	return s, d, nil
}
