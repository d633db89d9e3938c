package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/norrland/verkstad/internal/domain"
)

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	// DefaultStepNames is the step template seeded into new tasks, in
	// order. Empty falls back to the standard manufacturing routing.
	DefaultStepNames []string
}

// Service implements the application operations over a Repository. Derived
// values (parent completion, task progress, step weights) are recomputed and
// persisted inside the same operation that invalidates them.
type Service struct {
	repo         Repository
	idGen        IDGenerator
	clock        Clock
	stepTemplate []string
}

// NewService constructs a new service.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	template := sanitizeStepNames(cfg.DefaultStepNames)
	if len(template) == 0 {
		template = defaultStepTemplate()
	}
	return &Service{
		repo:         repo,
		idGen:        idGen,
		clock:        clock,
		stepTemplate: template,
	}
}

// defaultStepTemplate is the standard manufacturing routing seeded into new
// tasks when no template is configured.
func defaultStepTemplate() []string {
	return []string{
		"Kitting", "Serial Number Gen.", "Pallet Transfer",
		"Mech Assembly #1", "Mech Assembly #2", "Mech Assembly #3", "Mech Assembly #4",
		"IPQA #1", "Leak Test",
		"Optical Assembly #1", "Optical Assembly #2", "Optical Assembly #3", "Optical Assembly #4",
		"IPQA #2", "Fill Coolant", "Function Test", "FQA", "Packing", "Ready to Ship", "Shipped",
	}
}

func sanitizeStepNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		out = append(out, n)
	}
	return out
}

// EnsureDefaultProject returns the first project, creating one when the
// store is empty.
func (s *Service) EnsureDefaultProject(ctx context.Context) (domain.Project, error) {
	projects, err := s.repo.ListProjects(ctx)
	if err != nil {
		return domain.Project{}, err
	}
	if len(projects) > 0 {
		return projects[0], nil
	}
	project, err := domain.NewProject(s.idGen(), "General", "", s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// EnsureDefaultVersion returns the project's first version, creating "V1"
// when the project has none.
func (s *Service) EnsureDefaultVersion(ctx context.Context, projectID string) (domain.Version, error) {
	versions, err := s.repo.ListVersions(ctx, projectID)
	if err != nil {
		return domain.Version{}, err
	}
	if len(versions) > 0 {
		return versions[0], nil
	}
	version, err := domain.NewVersion(s.idGen(), projectID, "V1", s.clock())
	if err != nil {
		return domain.Version{}, err
	}
	if err := s.repo.CreateVersion(ctx, version); err != nil {
		return domain.Version{}, err
	}
	return version, nil
}

// CreateProjectInput holds input values for create project operations.
type CreateProjectInput struct {
	Name     string
	Customer string
}

// CreateProject creates a project.
func (s *Service) CreateProject(ctx context.Context, in CreateProjectInput) (domain.Project, error) {
	project, err := domain.NewProject(s.idGen(), in.Name, in.Customer, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// UpdateProjectInput holds input values for update project operations.
type UpdateProjectInput struct {
	ProjectID string
	Name      string
	Customer  string
	Status    domain.ProjectStatus
	Notes     string
}

// UpdateProject updates a project's editable fields.
func (s *Service) UpdateProject(ctx context.Context, in UpdateProjectInput) (domain.Project, error) {
	project, err := s.repo.GetProject(ctx, in.ProjectID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := project.UpdateDetails(in.Name, in.Customer, in.Status, in.Notes, s.clock()); err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.UpdateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// ListProjects lists all projects.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

// CreateVersion creates a version under a project.
func (s *Service) CreateVersion(ctx context.Context, projectID, name string) (domain.Version, error) {
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return domain.Version{}, err
	}
	version, err := domain.NewVersion(s.idGen(), projectID, name, s.clock())
	if err != nil {
		return domain.Version{}, err
	}
	if err := s.repo.CreateVersion(ctx, version); err != nil {
		return domain.Version{}, err
	}
	return version, nil
}

// RenameVersion renames a version.
func (s *Service) RenameVersion(ctx context.Context, versionID, name string) (domain.Version, error) {
	version, err := s.repo.GetVersion(ctx, versionID)
	if err != nil {
		return domain.Version{}, err
	}
	if err := version.Rename(name, s.clock()); err != nil {
		return domain.Version{}, err
	}
	if err := s.repo.UpdateVersion(ctx, version); err != nil {
		return domain.Version{}, err
	}
	return version, nil
}

// ListVersions lists a project's versions.
func (s *Service) ListVersions(ctx context.Context, projectID string) ([]domain.Version, error) {
	return s.repo.ListVersions(ctx, projectID)
}

// CreateTaskInput holds input values for create task operations.
type CreateTaskInput struct {
	VersionID  string
	Name       string
	Phase      domain.Phase
	Priority   domain.Priority
	AssignedTo string
	Notes      string
	StartDate  *time.Time
	DueDate    *time.Time
	// NoDefaultSteps skips seeding the default step template.
	NoDefaultSteps bool
}

// CreateTask creates a task and, unless disabled, seeds it with the default
// step template at equal weights.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	if _, err := s.repo.GetVersion(ctx, in.VersionID); err != nil {
		return domain.Task{}, err
	}
	now := s.clock()
	task, err := domain.NewTask(domain.TaskInput{
		ID:         s.idGen(),
		VersionID:  in.VersionID,
		Name:       in.Name,
		Phase:      in.Phase,
		Priority:   in.Priority,
		AssignedTo: in.AssignedTo,
		Notes:      in.Notes,
		StartDate:  in.StartDate,
		DueDate:    in.DueDate,
	}, now)
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	if in.NoDefaultSteps {
		return task, nil
	}

	weight := domain.RoundWeight(1 / float64(len(s.stepTemplate)))
	for i, name := range s.stepTemplate {
		step, err := domain.NewStep(domain.StepInput{
			ID:        s.idGen(),
			TaskID:    task.ID,
			Name:      name,
			Weight:    weight,
			SortOrder: i,
		}, now)
		if err != nil {
			return domain.Task{}, fmt.Errorf("seed step %q: %w", name, err)
		}
		if err := s.repo.CreateStep(ctx, step); err != nil {
			return domain.Task{}, err
		}
	}
	return task, nil
}

// UpdateTaskInput holds input values for update task operations.
type UpdateTaskInput struct {
	TaskID        string
	Name          string
	Phase         domain.Phase
	Status        domain.TaskStatus
	Priority      domain.Priority
	AssignedTo    string
	BlockedReason string
	Notes         string
}

// UpdateTask updates a task's editable fields.
func (s *Service) UpdateTask(ctx context.Context, in UpdateTaskInput) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, in.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	err = task.UpdateDetails(in.Name, in.Phase, in.Status, in.Priority, in.AssignedTo, in.BlockedReason, in.Notes, s.clock())
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// UpdateTaskSchedule sets or clears a task's date range. This is the commit
// point for timeline draw and drag gestures.
func (s *Service) UpdateTaskSchedule(ctx context.Context, taskID string, start, due *time.Time) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.SetSchedule(start, due, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// GetTask returns a task by id.
func (s *Service) GetTask(ctx context.Context, taskID string) (domain.Task, error) {
	return s.repo.GetTask(ctx, taskID)
}

// ListTasks lists a version's tasks in canonical phase order, then by name.
// Tasks with an unrecognized phase sort last.
func (s *Service) ListTasks(ctx context.Context, versionID string) ([]domain.Task, error) {
	tasks, err := s.repo.ListTasks(ctx, versionID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(tasks, func(a, b domain.Task) int {
		if ra, rb := phaseRank(a.Phase), phaseRank(b.Phase); ra != rb {
			return ra - rb
		}
		return strings.Compare(a.Name, b.Name)
	})
	return tasks, nil
}

func phaseRank(p domain.Phase) int {
	if i := slices.Index(domain.PhaseOrder, p); i >= 0 {
		return i
	}
	return len(domain.PhaseOrder)
}

// DeleteTask deletes a task and its steps.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	return s.repo.DeleteTask(ctx, taskID)
}

// StepTree loads a task's steps as the two-level tree.
func (s *Service) StepTree(ctx context.Context, taskID string) (domain.StepTree, error) {
	steps, err := s.repo.ListSteps(ctx, taskID)
	if err != nil {
		return domain.StepTree{}, err
	}
	return domain.BuildStepTree(steps), nil
}

// AddParentStep appends a parent step, rebalances all parent weights and
// recomputes the task's progress.
func (s *Service) AddParentStep(ctx context.Context, taskID, name string) (domain.Step, error) {
	tree, err := s.StepTree(ctx, taskID)
	if err != nil {
		return domain.Step{}, err
	}
	now := s.clock()
	step, err := domain.NewStep(domain.StepInput{
		ID:        s.idGen(),
		TaskID:    taskID,
		Name:      name,
		SortOrder: nextSortOrder(tree.Parents),
	}, now)
	if err != nil {
		return domain.Step{}, err
	}
	if err := s.repo.CreateStep(ctx, step); err != nil {
		return domain.Step{}, err
	}

	parents := append(slices.Clone(tree.Parents), step)
	for _, w := range domain.RebalanceWeights(parents) {
		for i := range parents {
			if parents[i].ID != w.ID {
				continue
			}
			if err := parents[i].SetWeight(w.Weight, now); err != nil {
				return domain.Step{}, err
			}
			if err := s.repo.UpdateStep(ctx, parents[i]); err != nil {
				return domain.Step{}, err
			}
			if parents[i].ID == step.ID {
				step = parents[i]
			}
		}
	}
	if _, err := s.recomputeProgress(ctx, taskID); err != nil {
		return domain.Step{}, err
	}
	return step, nil
}

// AddChildStep appends a child item under a parent, reconciling the parent's
// completion flag and the task's progress.
func (s *Service) AddChildStep(ctx context.Context, taskID, parentStepID, name string) (domain.Step, error) {
	tree, err := s.StepTree(ctx, taskID)
	if err != nil {
		return domain.Step{}, err
	}
	parent, ok := tree.Parent(parentStepID)
	if !ok {
		return domain.Step{}, ErrNotFound
	}
	now := s.clock()
	step, err := domain.NewStep(domain.StepInput{
		ID:           s.idGen(),
		TaskID:       taskID,
		ParentStepID: &parentStepID,
		Name:         name,
		SortOrder:    nextSortOrder(tree.Children(parentStepID)),
	}, now)
	if err != nil {
		return domain.Step{}, err
	}
	if err := s.repo.CreateStep(ctx, step); err != nil {
		return domain.Step{}, err
	}

	// A new incomplete child always makes the parent incomplete.
	if parent.Complete {
		parent.SetComplete(false, now)
		if err := s.repo.UpdateStep(ctx, parent); err != nil {
			return domain.Step{}, err
		}
	}
	if _, err := s.recomputeProgress(ctx, taskID); err != nil {
		return domain.Step{}, err
	}
	return step, nil
}

// DeleteStep removes a step. Deleting a parent removes its children and
// rebalances the remaining parents; deleting a child reconciles its parent.
// Task progress is recomputed either way.
func (s *Service) DeleteStep(ctx context.Context, stepID string) error {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return err
	}
	tree, err := s.StepTree(ctx, step.TaskID)
	if err != nil {
		return err
	}
	now := s.clock()

	if step.IsParent() {
		for _, child := range tree.Children(step.ID) {
			if err := s.repo.DeleteStep(ctx, child.ID); err != nil {
				return err
			}
		}
		if err := s.repo.DeleteStep(ctx, step.ID); err != nil {
			return err
		}
		remaining := slices.DeleteFunc(slices.Clone(tree.Parents), func(p domain.Step) bool {
			return p.ID == step.ID
		})
		for _, w := range domain.RebalanceWeights(remaining) {
			for i := range remaining {
				if remaining[i].ID != w.ID {
					continue
				}
				if err := remaining[i].SetWeight(w.Weight, now); err != nil {
					return err
				}
				if err := s.repo.UpdateStep(ctx, remaining[i]); err != nil {
					return err
				}
			}
		}
	} else {
		if err := s.repo.DeleteStep(ctx, step.ID); err != nil {
			return err
		}
		if parent, ok := tree.Parent(*step.ParentStepID); ok {
			siblings := slices.DeleteFunc(slices.Clone(tree.Children(parent.ID)), func(c domain.Step) bool {
				return c.ID == step.ID
			})
			if eff := domain.EffectiveComplete(parent, siblings); eff != parent.Complete {
				parent.SetComplete(eff, now)
				if err := s.repo.UpdateStep(ctx, parent); err != nil {
					return err
				}
			}
		}
	}

	_, err = s.recomputeProgress(ctx, step.TaskID)
	return err
}

// ToggleStep flips a step's completion. Parents with children reject the
// toggle with domain.ErrStepHasChildren; toggling a child reconciles its
// parent. The updated task (with recomputed progress) is returned.
func (s *Service) ToggleStep(ctx context.Context, stepID string) (domain.Task, error) {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return domain.Task{}, err
	}
	tree, err := s.StepTree(ctx, step.TaskID)
	if err != nil {
		return domain.Task{}, err
	}
	now := s.clock()

	if step.IsParent() {
		newComplete, err := domain.ToggleParent(step, tree.Children(step.ID))
		if err != nil {
			return domain.Task{}, err
		}
		step.SetComplete(newComplete, now)
		if err := s.repo.UpdateStep(ctx, step); err != nil {
			return domain.Task{}, err
		}
		return s.setProgress(ctx, step.TaskID, domain.ProgressWithOverride(tree, step.ID, newComplete))
	}

	parent, ok := tree.Parent(*step.ParentStepID)
	if !ok {
		// Orphaned child: flip the row, progress is unaffected since
		// orphans are excluded from the tree.
		step.SetComplete(!step.Complete, now)
		if err := s.repo.UpdateStep(ctx, step); err != nil {
			return domain.Task{}, err
		}
		return s.repo.GetTask(ctx, step.TaskID)
	}

	res := domain.ToggleChild(step, parent, tree)
	step.SetComplete(res.ChildComplete, now)
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return domain.Task{}, err
	}
	if res.ParentChanged {
		parent.SetComplete(res.ParentComplete, now)
		if err := s.repo.UpdateStep(ctx, parent); err != nil {
			return domain.Task{}, err
		}
	}
	return s.setProgress(ctx, step.TaskID, res.TaskProgress)
}

// ReorderStep swaps a step's sort order with its adjacent sibling in the
// given direction. Boundary moves are no-ops.
func (s *Service) ReorderStep(ctx context.Context, stepID string, dir domain.ReorderDirection) error {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return err
	}
	tree, err := s.StepTree(ctx, step.TaskID)
	if err != nil {
		return err
	}

	siblings := tree.Parents
	if !step.IsParent() {
		siblings = tree.Children(*step.ParentStepID)
	}
	i := slices.IndexFunc(siblings, func(s domain.Step) bool { return s.ID == stepID })
	if i < 0 {
		return ErrNotFound
	}
	now := s.clock()
	for _, w := range domain.PlanReorder(siblings, i, dir) {
		for j := range siblings {
			if siblings[j].ID != w.ID {
				continue
			}
			row := siblings[j]
			if err := row.SetSortOrder(w.SortOrder, now); err != nil {
				return err
			}
			if err := s.repo.UpdateStep(ctx, row); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateStepInput holds input values for update step operations.
type UpdateStepInput struct {
	StepID     string
	Name       string
	Status     domain.TaskStatus
	AssignedTo string
}

// UpdateStepDetails updates a step's editable fields.
func (s *Service) UpdateStepDetails(ctx context.Context, in UpdateStepInput) (domain.Step, error) {
	step, err := s.repo.GetStep(ctx, in.StepID)
	if err != nil {
		return domain.Step{}, err
	}
	now := s.clock()
	if err := step.Rename(in.Name, now); err != nil {
		return domain.Step{}, err
	}
	if err := step.SetStatus(in.Status, now); err != nil {
		return domain.Step{}, err
	}
	step.SetAssignedTo(in.AssignedTo, now)
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return domain.Step{}, err
	}
	return step, nil
}

// UpdateStepSchedule sets or clears a step's date range.
func (s *Service) UpdateStepSchedule(ctx context.Context, stepID string, start, due *time.Time) (domain.Step, error) {
	step, err := s.repo.GetStep(ctx, stepID)
	if err != nil {
		return domain.Step{}, err
	}
	if err := step.SetSchedule(start, due, s.clock()); err != nil {
		return domain.Step{}, err
	}
	if err := s.repo.UpdateStep(ctx, step); err != nil {
		return domain.Step{}, err
	}
	return step, nil
}

// recomputeProgress re-derives a task's progress from its stored steps.
func (s *Service) recomputeProgress(ctx context.Context, taskID string) (domain.Task, error) {
	tree, err := s.StepTree(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	return s.setProgress(ctx, taskID, domain.TaskProgress(tree))
}

func (s *Service) setProgress(ctx context.Context, taskID string, progress float64) (domain.Task, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.Task{}, err
	}
	if err := task.SetProgress(progress, s.clock()); err != nil {
		return domain.Task{}, err
	}
	if err := s.repo.UpdateTask(ctx, task); err != nil {
		return domain.Task{}, err
	}
	return task, nil
}

// nextSortOrder returns one past the highest sort order in the slice.
func nextSortOrder(steps []domain.Step) int {
	next := 0
	for _, s := range steps {
		if s.SortOrder >= next {
			next = s.SortOrder + 1
		}
	}
	return next
}
