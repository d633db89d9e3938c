package domain

import "errors"

var (
	ErrInvalidID        = errors.New("invalid id")
	ErrInvalidName      = errors.New("invalid name")
	ErrInvalidTaskID    = errors.New("invalid task id")
	ErrInvalidVersionID = errors.New("invalid version id")
	ErrInvalidPhase     = errors.New("invalid phase")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidWeight    = errors.New("invalid weight")
	ErrInvalidProgress  = errors.New("invalid progress")
	ErrInvalidDateRange = errors.New("invalid date range")
	ErrStepHasChildren  = errors.New("step has children")
)
