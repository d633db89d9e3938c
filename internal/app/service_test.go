package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/norrland/verkstad/internal/domain"
)

type fakeRepo struct {
	projects map[string]domain.Project
	versions map[string]domain.Version
	tasks    map[string]domain.Task
	steps    map[string]domain.Step
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		projects: map[string]domain.Project{},
		versions: map[string]domain.Version{},
		tasks:    map[string]domain.Task{},
		steps:    map[string]domain.Step{},
	}
}

func (f *fakeRepo) CreateProject(_ context.Context, p domain.Project) error {
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) UpdateProject(_ context.Context, p domain.Project) error {
	if _, ok := f.projects[p.ID]; !ok {
		return ErrNotFound
	}
	f.projects[p.ID] = p
	return nil
}

func (f *fakeRepo) GetProject(_ context.Context, id string) (domain.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, ErrNotFound
	}
	return p, nil
}

func (f *fakeRepo) ListProjects(_ context.Context) ([]domain.Project, error) {
	out := make([]domain.Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeRepo) CreateVersion(_ context.Context, v domain.Version) error {
	f.versions[v.ID] = v
	return nil
}

func (f *fakeRepo) UpdateVersion(_ context.Context, v domain.Version) error {
	if _, ok := f.versions[v.ID]; !ok {
		return ErrNotFound
	}
	f.versions[v.ID] = v
	return nil
}

func (f *fakeRepo) GetVersion(_ context.Context, id string) (domain.Version, error) {
	v, ok := f.versions[id]
	if !ok {
		return domain.Version{}, ErrNotFound
	}
	return v, nil
}

func (f *fakeRepo) ListVersions(_ context.Context, projectID string) ([]domain.Version, error) {
	out := make([]domain.Version, 0)
	for _, v := range f.versions {
		if v.ProjectID == projectID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeRepo) CreateTask(_ context.Context, t domain.Task) error {
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) UpdateTask(_ context.Context, t domain.Task) error {
	if _, ok := f.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	f.tasks[t.ID] = t
	return nil
}

func (f *fakeRepo) GetTask(_ context.Context, id string) (domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

func (f *fakeRepo) ListTasks(_ context.Context, versionID string) ([]domain.Task, error) {
	out := make([]domain.Task, 0)
	for _, t := range f.tasks {
		if t.VersionID == versionID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteTask(_ context.Context, id string) error {
	if _, ok := f.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(f.tasks, id)
	for stepID, s := range f.steps {
		if s.TaskID == id {
			delete(f.steps, stepID)
		}
	}
	return nil
}

func (f *fakeRepo) CreateStep(_ context.Context, s domain.Step) error {
	f.steps[s.ID] = s
	return nil
}

func (f *fakeRepo) UpdateStep(_ context.Context, s domain.Step) error {
	if _, ok := f.steps[s.ID]; !ok {
		return ErrNotFound
	}
	f.steps[s.ID] = s
	return nil
}

func (f *fakeRepo) GetStep(_ context.Context, id string) (domain.Step, error) {
	s, ok := f.steps[id]
	if !ok {
		return domain.Step{}, ErrNotFound
	}
	return s, nil
}

func (f *fakeRepo) ListSteps(_ context.Context, taskID string) ([]domain.Step, error) {
	out := make([]domain.Step, 0)
	for _, s := range f.steps {
		if s.TaskID == taskID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) DeleteStep(_ context.Context, id string) error {
	if _, ok := f.steps[id]; !ok {
		return ErrNotFound
	}
	delete(f.steps, id)
	return nil
}

func newTestService(repo Repository, cfg ServiceConfig) *Service {
	n := 0
	idGen := func() string {
		n++
		return fmt.Sprintf("id-%03d", n)
	}
	clock := func() time.Time {
		return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	}
	return NewService(repo, idGen, clock, cfg)
}

func seedVersion(t *testing.T, svc *Service) domain.Version {
	t.Helper()
	ctx := context.Background()
	project, err := svc.EnsureDefaultProject(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultProject() error = %v", err)
	}
	version, err := svc.EnsureDefaultVersion(ctx, project.ID)
	if err != nil {
		t.Fatalf("EnsureDefaultVersion() error = %v", err)
	}
	return version
}

func TestEnsureDefaultProjectIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{})
	ctx := context.Background()

	first, err := svc.EnsureDefaultProject(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultProject() error = %v", err)
	}
	second, err := svc.EnsureDefaultProject(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultProject() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same project, got %q and %q", first.ID, second.ID)
	}
	if len(repo.projects) != 1 {
		t.Fatalf("expected one project, got %d", len(repo.projects))
	}
}

func TestCreateTaskSeedsDefaultSteps(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "Unit 42"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	tree, err := svc.StepTree(ctx, task.ID)
	if err != nil {
		t.Fatalf("StepTree() error = %v", err)
	}
	if len(tree.Parents) != 20 {
		t.Fatalf("expected 20 seeded steps, got %d", len(tree.Parents))
	}
	if tree.Parents[0].Name != "Kitting" || tree.Parents[19].Name != "Shipped" {
		t.Fatalf("unexpected routing order: first %q last %q", tree.Parents[0].Name, tree.Parents[19].Name)
	}
	for i, p := range tree.Parents {
		if p.Weight != 0.05 {
			t.Fatalf("step %d weight = %v, want 0.05", i, p.Weight)
		}
		if p.SortOrder != i {
			t.Fatalf("step %d sort order = %d", i, p.SortOrder)
		}
	}
}

func TestCreateTaskWithoutSteps(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{})
	version := seedVersion(t, svc)

	task, err := svc.CreateTask(context.Background(), CreateTaskInput{
		VersionID:      version.ID,
		Name:           "bare",
		NoDefaultSteps: true,
	})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	if len(repo.steps) != 0 {
		t.Fatalf("expected no steps, got %d", len(repo.steps))
	}
	if task.Progress != 0 {
		t.Fatalf("expected zero progress, got %v", task.Progress)
	}
}

func TestCreateTaskCustomTemplate(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"Cut", " Weld ", "", "Paint"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "frame"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	tree, _ := svc.StepTree(ctx, task.ID)
	if len(tree.Parents) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(tree.Parents))
	}
	if tree.Parents[1].Name != "Weld" {
		t.Fatalf("expected trimmed name, got %q", tree.Parents[1].Name)
	}
	if tree.Parents[0].Weight != 0.333333 {
		t.Fatalf("weight = %v, want 0.333333", tree.Parents[0].Weight)
	}
}

func TestToggleParentStepDrivesProgress(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b", "c", "d"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	tree, _ := svc.StepTree(ctx, task.ID)

	updated, err := svc.ToggleStep(ctx, tree.Parents[0].ID)
	if err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	if updated.Progress != 0.25 {
		t.Fatalf("progress = %v, want 0.25", updated.Progress)
	}

	// Toggle back down.
	updated, err = svc.ToggleStep(ctx, tree.Parents[0].ID)
	if err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}
	if updated.Progress != 0 {
		t.Fatalf("progress = %v, want 0", updated.Progress)
	}
}

func TestToggleParentWithChildrenRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	tree, _ := svc.StepTree(ctx, task.ID)
	parent := tree.Parents[0]
	if _, err := svc.AddChildStep(ctx, task.ID, parent.ID, "item"); err != nil {
		t.Fatalf("AddChildStep() error = %v", err)
	}

	_, err := svc.ToggleStep(ctx, parent.ID)
	if !errors.Is(err, domain.ErrStepHasChildren) {
		t.Fatalf("expected ErrStepHasChildren, got %v", err)
	}
	got, _ := repo.GetStep(ctx, parent.ID)
	if got.Complete {
		t.Fatal("rejected toggle must not mutate the parent")
	}
}

func TestToggleChildReconcilesParent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	tree, _ := svc.StepTree(ctx, task.ID)
	parent := tree.Parents[0]
	c1, _ := svc.AddChildStep(ctx, task.ID, parent.ID, "one")
	c2, _ := svc.AddChildStep(ctx, task.ID, parent.ID, "two")

	if _, err := svc.ToggleStep(ctx, c1.ID); err != nil {
		t.Fatalf("ToggleStep(c1) error = %v", err)
	}
	got, _ := repo.GetStep(ctx, parent.ID)
	if got.Complete {
		t.Fatal("parent must stay incomplete while a child remains")
	}

	updated, err := svc.ToggleStep(ctx, c2.ID)
	if err != nil {
		t.Fatalf("ToggleStep(c2) error = %v", err)
	}
	got, _ = repo.GetStep(ctx, parent.ID)
	if !got.Complete {
		t.Fatal("parent must auto-complete with all children done")
	}
	if updated.Progress != 0.5 {
		t.Fatalf("progress = %v, want 0.5", updated.Progress)
	}

	// Flipping one child back down uncompletes the parent.
	updated, err = svc.ToggleStep(ctx, c1.ID)
	if err != nil {
		t.Fatalf("ToggleStep(c1 again) error = %v", err)
	}
	got, _ = repo.GetStep(ctx, parent.ID)
	if got.Complete {
		t.Fatal("parent must uncomplete when a child flips back")
	}
	if updated.Progress != 0 {
		t.Fatalf("progress = %v, want 0", updated.Progress)
	}
}

func TestAddParentStepRebalances(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	if _, err := svc.AddParentStep(ctx, task.ID, "b"); err != nil {
		t.Fatalf("AddParentStep() error = %v", err)
	}
	tree, _ := svc.StepTree(ctx, task.ID)
	if len(tree.Parents) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(tree.Parents))
	}
	for _, p := range tree.Parents {
		if p.Weight != 0.5 {
			t.Fatalf("weight = %v, want 0.5 after rebalance", p.Weight)
		}
	}
	if tree.Parents[1].SortOrder != 1 {
		t.Fatalf("new parent sort order = %d, want 1", tree.Parents[1].SortOrder)
	}
}

func TestAddChildStepUncompletesParent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	tree, _ := svc.StepTree(ctx, task.ID)
	parent := tree.Parents[0]
	if _, err := svc.ToggleStep(ctx, parent.ID); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	if _, err := svc.AddChildStep(ctx, task.ID, parent.ID, "new item"); err != nil {
		t.Fatalf("AddChildStep() error = %v", err)
	}
	got, _ := repo.GetStep(ctx, parent.ID)
	if got.Complete {
		t.Fatal("adding an incomplete child must uncomplete the parent")
	}
	updatedTask, _ := repo.GetTask(ctx, task.ID)
	if updatedTask.Progress != 0 {
		t.Fatalf("progress = %v, want 0", updatedTask.Progress)
	}
}

func TestDeleteParentStepRebalances(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b", "c"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	tree, _ := svc.StepTree(ctx, task.ID)
	victim := tree.Parents[1]
	if _, err := svc.AddChildStep(ctx, task.ID, victim.ID, "doomed item"); err != nil {
		t.Fatalf("AddChildStep() error = %v", err)
	}

	if err := svc.DeleteStep(ctx, victim.ID); err != nil {
		t.Fatalf("DeleteStep() error = %v", err)
	}
	tree, _ = svc.StepTree(ctx, task.ID)
	if len(tree.Parents) != 2 {
		t.Fatalf("expected 2 parents, got %d", len(tree.Parents))
	}
	for _, p := range tree.Parents {
		if p.Weight != 0.5 {
			t.Fatalf("weight = %v, want 0.5 after rebalance", p.Weight)
		}
	}
	if len(repo.steps) != 2 {
		t.Fatalf("children must be deleted with the parent, %d rows remain", len(repo.steps))
	}
}

func TestDeleteChildStepReconcilesParent(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	tree, _ := svc.StepTree(ctx, task.ID)
	parent := tree.Parents[0]
	c1, _ := svc.AddChildStep(ctx, task.ID, parent.ID, "done")
	c2, _ := svc.AddChildStep(ctx, task.ID, parent.ID, "not done")
	if _, err := svc.ToggleStep(ctx, c1.ID); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	// Removing the incomplete child leaves only complete children, so the
	// parent auto-completes.
	if err := svc.DeleteStep(ctx, c2.ID); err != nil {
		t.Fatalf("DeleteStep() error = %v", err)
	}
	got, _ := repo.GetStep(ctx, parent.ID)
	if !got.Complete {
		t.Fatal("parent must auto-complete after deleting its unfinished child")
	}
	updatedTask, _ := repo.GetTask(ctx, task.ID)
	if updatedTask.Progress != 0.5 {
		t.Fatalf("progress = %v, want 0.5", updatedTask.Progress)
	}
}

func TestReorderStep(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b", "c"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	tree, _ := svc.StepTree(ctx, task.ID)

	if err := svc.ReorderStep(ctx, tree.Parents[1].ID, domain.MoveUp); err != nil {
		t.Fatalf("ReorderStep() error = %v", err)
	}
	tree, _ = svc.StepTree(ctx, task.ID)
	if tree.Parents[0].Name != "b" || tree.Parents[1].Name != "a" || tree.Parents[2].Name != "c" {
		t.Fatalf("unexpected order after swap: %q %q %q", tree.Parents[0].Name, tree.Parents[1].Name, tree.Parents[2].Name)
	}

	// Boundary moves are no-ops.
	if err := svc.ReorderStep(ctx, tree.Parents[0].ID, domain.MoveUp); err != nil {
		t.Fatalf("ReorderStep() boundary error = %v", err)
	}
	tree, _ = svc.StepTree(ctx, task.ID)
	if tree.Parents[0].Name != "b" {
		t.Fatal("boundary reorder must not change order")
	}
}

func TestListTasksPhaseOrder(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	for _, in := range []CreateTaskInput{
		{VersionID: version.ID, Name: "zeta", Phase: domain.PhaseMP, NoDefaultSteps: true},
		{VersionID: version.ID, Name: "alpha", Phase: domain.PhaseProduction, NoDefaultSteps: true},
		{VersionID: version.ID, Name: "beta", Phase: domain.PhaseEVT, NoDefaultSteps: true},
		{VersionID: version.ID, Name: "gamma", Phase: domain.PhaseMP, NoDefaultSteps: true},
	} {
		if _, err := svc.CreateTask(ctx, in); err != nil {
			t.Fatalf("CreateTask(%q) error = %v", in.Name, err)
		}
	}

	tasks, err := svc.ListTasks(ctx, version.ID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	gotNames := make([]string, 0, len(tasks))
	for _, task := range tasks {
		gotNames = append(gotNames, task.Name)
	}
	want := []string{"gamma", "zeta", "beta", "alpha"}
	for i := range want {
		if gotNames[i] != want[i] {
			t.Fatalf("order = %v, want %v", gotNames, want)
		}
	}
}

func TestUpdateTaskScheduleRejectsInvertedRange(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x", NoDefaultSteps: true})
	start := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.UpdateTaskSchedule(ctx, task.ID, &start, &due)
	if !errors.Is(err, domain.ErrInvalidDateRange) {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}

	updated, err := svc.UpdateTaskSchedule(ctx, task.ID, &due, &start)
	if err != nil {
		t.Fatalf("UpdateTaskSchedule() error = %v", err)
	}
	if updated.StartDate == nil || !updated.StartDate.Equal(due) {
		t.Fatalf("unexpected start %v", updated.StartDate)
	}
}

func TestDeleteTaskRemovesSteps(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x"})
	if err := svc.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("DeleteTask() error = %v", err)
	}
	if len(repo.steps) != 0 {
		t.Fatalf("expected steps removed with task, %d remain", len(repo.steps))
	}
	if _, err := svc.GetTask(ctx, task.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
