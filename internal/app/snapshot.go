package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/norrland/verkstad/internal/domain"
)

// SnapshotVersion identifies the snapshot wire format.
const SnapshotVersion = "verkstad.snapshot.v1"

// Snapshot is a full JSON export of the store, suitable for backup and for
// moving data between machines.
type Snapshot struct {
	Version    string               `json:"version"`
	ExportedAt time.Time            `json:"exported_at"`
	Projects   []SnapshotProject    `json:"projects"`
	Versions   []SnapshotVersionRow `json:"versions"`
	Tasks      []SnapshotTask       `json:"tasks"`
	Steps      []SnapshotStep       `json:"steps"`
}

// SnapshotProject is one exported project row.
type SnapshotProject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Customer  string    `json:"customer,omitempty"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotVersionRow is one exported project version row.
type SnapshotVersionRow struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SnapshotTask is one exported task row.
type SnapshotTask struct {
	ID            string     `json:"id"`
	VersionID     string     `json:"version_id"`
	Name          string     `json:"name"`
	Phase         string     `json:"phase"`
	Status        string     `json:"status"`
	Priority      string     `json:"priority"`
	Progress      float64    `json:"progress"`
	AssignedTo    string     `json:"assigned_to,omitempty"`
	BlockedReason string     `json:"blocked_reason,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	DueDate       *time.Time `json:"due_date,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// SnapshotStep is one exported step row.
type SnapshotStep struct {
	ID           string     `json:"id"`
	TaskID       string     `json:"task_id"`
	ParentStepID *string    `json:"parent_step_id,omitempty"`
	Name         string     `json:"name"`
	Weight       float64    `json:"weight"`
	Complete     bool       `json:"complete"`
	SortOrder    int        `json:"sort_order"`
	Status       string     `json:"status"`
	AssignedTo   string     `json:"assigned_to,omitempty"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExportSnapshot exports every project, version, task and step.
func (s *Service) ExportSnapshot(ctx context.Context) (Snapshot, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	snap := Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: s.clock().UTC(),
		Projects:   make([]SnapshotProject, 0, len(projects)),
		Versions:   make([]SnapshotVersionRow, 0),
		Tasks:      make([]SnapshotTask, 0),
		Steps:      make([]SnapshotStep, 0),
	}
	for _, project := range projects {
		snap.Projects = append(snap.Projects, snapshotProjectFromDomain(project))

		versions, err := s.repo.ListVersions(ctx, project.ID)
		if err != nil {
			return Snapshot{}, err
		}
		for _, version := range versions {
			snap.Versions = append(snap.Versions, snapshotVersionFromDomain(version))

			tasks, err := s.repo.ListTasks(ctx, version.ID)
			if err != nil {
				return Snapshot{}, err
			}
			for _, task := range tasks {
				snap.Tasks = append(snap.Tasks, snapshotTaskFromDomain(task))

				steps, err := s.repo.ListSteps(ctx, task.ID)
				if err != nil {
					return Snapshot{}, err
				}
				for _, step := range steps {
					snap.Steps = append(snap.Steps, snapshotStepFromDomain(step))
				}
			}
		}
	}

	snap.sort()
	return snap, nil
}

// ImportSnapshot upserts a snapshot's rows: existing ids are updated in
// place, unknown ids are created. Rows are applied parent-first so foreign
// keys always resolve.
func (s *Service) ImportSnapshot(ctx context.Context, snap Snapshot) error {
	if err := snap.Validate(); err != nil {
		return err
	}
	snap.sort()

	for _, p := range snap.Projects {
		if err := upsert(ctx, p.toDomain(), s.repo.GetProject, s.repo.UpdateProject, s.repo.CreateProject, p.ID); err != nil {
			return err
		}
	}
	for _, v := range snap.Versions {
		if err := upsert(ctx, v.toDomain(), s.repo.GetVersion, s.repo.UpdateVersion, s.repo.CreateVersion, v.ID); err != nil {
			return err
		}
	}
	for _, t := range snap.Tasks {
		if err := upsert(ctx, t.toDomain(), s.repo.GetTask, s.repo.UpdateTask, s.repo.CreateTask, t.ID); err != nil {
			return err
		}
	}
	// Parents before children, so a child's parent row always exists.
	for _, parentPass := range []bool{true, false} {
		for _, row := range snap.Steps {
			if (row.ParentStepID == nil) != parentPass {
				continue
			}
			if err := upsert(ctx, row.toDomain(), s.repo.GetStep, s.repo.UpdateStep, s.repo.CreateStep, row.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func upsert[T any](
	ctx context.Context,
	row T,
	get func(context.Context, string) (T, error),
	update func(context.Context, T) error,
	create func(context.Context, T) error,
	id string,
) error {
	if _, err := get(ctx, id); err == nil {
		return update(ctx, row)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	return create(ctx, row)
}

// Validate checks referential integrity and required fields before import.
func (s *Snapshot) Validate() error {
	if s.Version != "" && s.Version != SnapshotVersion {
		return fmt.Errorf("%w: unsupported version %q", ErrInvalidSnapshot, s.Version)
	}

	projectIDs := map[string]struct{}{}
	for i, p := range s.Projects {
		if strings.TrimSpace(p.ID) == "" || strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: projects[%d] id and name are required", ErrInvalidSnapshot, i)
		}
		if _, exists := projectIDs[p.ID]; exists {
			return fmt.Errorf("%w: duplicate project id %q", ErrInvalidSnapshot, p.ID)
		}
		projectIDs[p.ID] = struct{}{}
	}

	versionIDs := map[string]struct{}{}
	for i, v := range s.Versions {
		if strings.TrimSpace(v.ID) == "" || strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: versions[%d] id and name are required", ErrInvalidSnapshot, i)
		}
		if _, ok := projectIDs[v.ProjectID]; !ok {
			return fmt.Errorf("%w: versions[%d] references unknown project %q", ErrInvalidSnapshot, i, v.ProjectID)
		}
		if _, exists := versionIDs[v.ID]; exists {
			return fmt.Errorf("%w: duplicate version id %q", ErrInvalidSnapshot, v.ID)
		}
		versionIDs[v.ID] = struct{}{}
	}

	taskIDs := map[string]struct{}{}
	for i, t := range s.Tasks {
		if strings.TrimSpace(t.ID) == "" || strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("%w: tasks[%d] id and name are required", ErrInvalidSnapshot, i)
		}
		if _, ok := versionIDs[t.VersionID]; !ok {
			return fmt.Errorf("%w: tasks[%d] references unknown version %q", ErrInvalidSnapshot, i, t.VersionID)
		}
		if _, exists := taskIDs[t.ID]; exists {
			return fmt.Errorf("%w: duplicate task id %q", ErrInvalidSnapshot, t.ID)
		}
		taskIDs[t.ID] = struct{}{}
	}

	stepIDs := map[string]struct{}{}
	for i, st := range s.Steps {
		if strings.TrimSpace(st.ID) == "" || strings.TrimSpace(st.Name) == "" {
			return fmt.Errorf("%w: steps[%d] id and name are required", ErrInvalidSnapshot, i)
		}
		if _, ok := taskIDs[st.TaskID]; !ok {
			return fmt.Errorf("%w: steps[%d] references unknown task %q", ErrInvalidSnapshot, i, st.TaskID)
		}
		if _, exists := stepIDs[st.ID]; exists {
			return fmt.Errorf("%w: duplicate step id %q", ErrInvalidSnapshot, st.ID)
		}
		stepIDs[st.ID] = struct{}{}
	}
	for i, st := range s.Steps {
		if st.ParentStepID == nil {
			continue
		}
		if _, ok := stepIDs[*st.ParentStepID]; !ok {
			return fmt.Errorf("%w: steps[%d] references unknown parent step %q", ErrInvalidSnapshot, i, *st.ParentStepID)
		}
	}
	return nil
}

func (s *Snapshot) sort() {
	sort.Slice(s.Projects, func(i, j int) bool { return s.Projects[i].ID < s.Projects[j].ID })
	sort.Slice(s.Versions, func(i, j int) bool { return s.Versions[i].ID < s.Versions[j].ID })
	sort.Slice(s.Tasks, func(i, j int) bool { return s.Tasks[i].ID < s.Tasks[j].ID })
	sort.Slice(s.Steps, func(i, j int) bool { return s.Steps[i].ID < s.Steps[j].ID })
}

func snapshotProjectFromDomain(p domain.Project) SnapshotProject {
	return SnapshotProject{
		ID:        p.ID,
		Name:      p.Name,
		Customer:  p.Customer,
		Status:    string(p.Status),
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func (p SnapshotProject) toDomain() domain.Project {
	return domain.Project{
		ID:        p.ID,
		Name:      p.Name,
		Customer:  p.Customer,
		Status:    domain.ProjectStatus(p.Status),
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func snapshotVersionFromDomain(v domain.Version) SnapshotVersionRow {
	return SnapshotVersionRow{
		ID:        v.ID,
		ProjectID: v.ProjectID,
		Name:      v.Name,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func (v SnapshotVersionRow) toDomain() domain.Version {
	return domain.Version{
		ID:        v.ID,
		ProjectID: v.ProjectID,
		Name:      v.Name,
		CreatedAt: v.CreatedAt,
		UpdatedAt: v.UpdatedAt,
	}
}

func snapshotTaskFromDomain(t domain.Task) SnapshotTask {
	return SnapshotTask{
		ID:            t.ID,
		VersionID:     t.VersionID,
		Name:          t.Name,
		Phase:         string(t.Phase),
		Status:        string(t.Status),
		Priority:      string(t.Priority),
		Progress:      t.Progress,
		AssignedTo:    t.AssignedTo,
		BlockedReason: t.BlockedReason,
		Notes:         t.Notes,
		StartDate:     t.StartDate,
		DueDate:       t.DueDate,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func (t SnapshotTask) toDomain() domain.Task {
	return domain.Task{
		ID:            t.ID,
		VersionID:     t.VersionID,
		Name:          t.Name,
		Phase:         domain.Phase(t.Phase),
		Status:        domain.TaskStatus(t.Status),
		Priority:      domain.Priority(t.Priority),
		Progress:      t.Progress,
		AssignedTo:    t.AssignedTo,
		BlockedReason: t.BlockedReason,
		Notes:         t.Notes,
		StartDate:     t.StartDate,
		DueDate:       t.DueDate,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func snapshotStepFromDomain(s domain.Step) SnapshotStep {
	return SnapshotStep{
		ID:           s.ID,
		TaskID:       s.TaskID,
		ParentStepID: s.ParentStepID,
		Name:         s.Name,
		Weight:       s.Weight,
		Complete:     s.Complete,
		SortOrder:    s.SortOrder,
		Status:       string(s.Status),
		AssignedTo:   s.AssignedTo,
		StartDate:    s.StartDate,
		DueDate:      s.DueDate,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (s SnapshotStep) toDomain() domain.Step {
	return domain.Step{
		ID:           s.ID,
		TaskID:       s.TaskID,
		ParentStepID: s.ParentStepID,
		Name:         s.Name,
		Weight:       s.Weight,
		Complete:     s.Complete,
		SortOrder:    s.SortOrder,
		Status:       domain.TaskStatus(s.Status),
		AssignedTo:   s.AssignedTo,
		StartDate:    s.StartDate,
		DueDate:      s.DueDate,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
