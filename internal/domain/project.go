package domain

import (
	"strings"
	"time"
)

// ProjectStatus represents a selectable project lifecycle state.
type ProjectStatus string

// ProjectStatusActive and related constants define the valid project states.
const (
	ProjectStatusActive    ProjectStatus = "Active"
	ProjectStatusOnHold    ProjectStatus = "On Hold"
	ProjectStatusComplete  ProjectStatus = "Complete"
	ProjectStatusCancelled ProjectStatus = "Cancelled"
)

var validProjectStatuses = []ProjectStatus{
	ProjectStatusActive,
	ProjectStatusOnHold,
	ProjectStatusComplete,
	ProjectStatusCancelled,
}

// Project represents one tracked manufacturing project.
type Project struct {
	ID        string
	Name      string
	Customer  string
	Status    ProjectStatus
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProject constructs a validated project.
func NewProject(id, name, customer string, now time.Time) (Project, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	customer = strings.TrimSpace(customer)
	if id == "" {
		return Project{}, ErrInvalidID
	}
	if name == "" {
		return Project{}, ErrInvalidName
	}
	return Project{
		ID:        id,
		Name:      name,
		Customer:  customer,
		Status:    ProjectStatusActive,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// UpdateDetails updates the mutable project fields.
func (p *Project) UpdateDetails(name, customer string, status ProjectStatus, notes string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if !containsStatus(validProjectStatuses, status) {
		return ErrInvalidStatus
	}
	p.Name = name
	p.Customer = strings.TrimSpace(customer)
	p.Status = status
	p.Notes = strings.TrimSpace(notes)
	p.UpdatedAt = now.UTC()
	return nil
}

// Version represents one build/version of a project; tasks belong to a version.
type Version struct {
	ID        string
	ProjectID string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewVersion constructs a validated project version.
func NewVersion(id, projectID, name string, now time.Time) (Version, error) {
	id = strings.TrimSpace(id)
	projectID = strings.TrimSpace(projectID)
	name = strings.TrimSpace(name)
	if id == "" || projectID == "" {
		return Version{}, ErrInvalidID
	}
	if name == "" {
		return Version{}, ErrInvalidName
	}
	return Version{
		ID:        id,
		ProjectID: projectID,
		Name:      name,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Rename renames the version.
func (v *Version) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	v.Name = name
	v.UpdatedAt = now.UTC()
	return nil
}

// containsStatus reports whether the status is in the allowed set.
func containsStatus(valid []ProjectStatus, s ProjectStatus) bool {
	for _, v := range valid {
		if v == s {
			return true
		}
	}
	return false
}
