package app

import (
	"context"
	"errors"
	"testing"
)

func TestSnapshotRoundTrip(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{DefaultStepNames: []string{"a", "b"}})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, err := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "Unit 7"})
	if err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
	tree, _ := svc.StepTree(ctx, task.ID)
	child, err := svc.AddChildStep(ctx, task.ID, tree.Parents[0].ID, "inspect")
	if err != nil {
		t.Fatalf("AddChildStep() error = %v", err)
	}
	if _, err := svc.ToggleStep(ctx, child.ID); err != nil {
		t.Fatalf("ToggleStep() error = %v", err)
	}

	snap, err := svc.ExportSnapshot(ctx)
	if err != nil {
		t.Fatalf("ExportSnapshot() error = %v", err)
	}
	if snap.Version != SnapshotVersion {
		t.Fatalf("version = %q", snap.Version)
	}
	if len(snap.Projects) != 1 || len(snap.Versions) != 1 || len(snap.Tasks) != 1 {
		t.Fatalf("unexpected counts: %d projects %d versions %d tasks",
			len(snap.Projects), len(snap.Versions), len(snap.Tasks))
	}
	if len(snap.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(snap.Steps))
	}

	// Import into a fresh store and compare the interesting state.
	repo2 := newFakeRepo()
	svc2 := newTestService(repo2, ServiceConfig{})
	if err := svc2.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	importedTask, err := svc2.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask() after import error = %v", err)
	}
	updatedTask, _ := svc.GetTask(ctx, task.ID)
	if importedTask.Progress != updatedTask.Progress {
		t.Fatalf("progress = %v, want %v", importedTask.Progress, updatedTask.Progress)
	}
	tree2, err := svc2.StepTree(ctx, task.ID)
	if err != nil {
		t.Fatalf("StepTree() after import error = %v", err)
	}
	if len(tree2.Parents) != 2 || len(tree2.Children(tree.Parents[0].ID)) != 1 {
		t.Fatalf("unexpected imported tree: %d parents", len(tree2.Parents))
	}
}

func TestImportSnapshotIsUpsert(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo, ServiceConfig{})
	version := seedVersion(t, svc)
	ctx := context.Background()

	task, _ := svc.CreateTask(ctx, CreateTaskInput{VersionID: version.ID, Name: "x", NoDefaultSteps: true})
	snap, _ := svc.ExportSnapshot(ctx)
	for i := range snap.Tasks {
		snap.Tasks[i].Name = "renamed"
	}

	if err := svc.ImportSnapshot(ctx, snap); err != nil {
		t.Fatalf("ImportSnapshot() error = %v", err)
	}
	got, _ := svc.GetTask(ctx, task.ID)
	if got.Name != "renamed" {
		t.Fatalf("expected import to update in place, got %q", got.Name)
	}
	if len(repo.tasks) != 1 {
		t.Fatalf("expected one task, got %d", len(repo.tasks))
	}
}

func TestSnapshotValidate(t *testing.T) {
	snap := Snapshot{Version: "bogus.v9"}
	if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot for bad version, got %v", err)
	}

	snap = Snapshot{
		Version: SnapshotVersion,
		Tasks:   []SnapshotTask{{ID: "t1", VersionID: "missing", Name: "x"}},
	}
	if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected dangling version reference to fail, got %v", err)
	}

	parent := "missing-step"
	snap = Snapshot{
		Version:  SnapshotVersion,
		Projects: []SnapshotProject{{ID: "p1", Name: "p"}},
		Versions: []SnapshotVersionRow{{ID: "v1", ProjectID: "p1", Name: "V1"}},
		Tasks:    []SnapshotTask{{ID: "t1", VersionID: "v1", Name: "x"}},
		Steps:    []SnapshotStep{{ID: "s1", TaskID: "t1", Name: "s", ParentStepID: &parent}},
	}
	if err := snap.Validate(); !errors.Is(err, ErrInvalidSnapshot) {
		t.Fatalf("expected dangling parent reference to fail, got %v", err)
	}
}
