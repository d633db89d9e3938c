package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "charm.land/bubbletea/v2"
	"github.com/google/uuid"

	"github.com/norrland/verkstad/internal/adapters/storage/sqlite"
	"github.com/norrland/verkstad/internal/app"
	"github.com/norrland/verkstad/internal/domain"
)

// TestMain sets deterministic environment defaults for CLI tests.
func TestMain(m *testing.M) {
	_ = os.Setenv("VERKSTAD_DEV_MODE", "false")
	os.Exit(m.Run())
}

// fakeProgram stands in for the interactive program loop.
type fakeProgram struct {
	runErr error
}

func (f fakeProgram) Run() (tea.Model, error) {
	return nil, f.runErr
}

// execute runs the CLI with the given args, capturing stdout into a builder.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out strings.Builder
	cmd := newRootCommand(&out, io.Discard)
	cmd.SetArgs(args)
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seedTask opens the database directly and creates one task with default steps.
func seedTask(t *testing.T, dbPath, name string) {
	t.Helper()
	repo, err := sqlite.Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{})
	ctx := context.Background()
	project, err := svc.EnsureDefaultProject(ctx)
	if err != nil {
		t.Fatalf("EnsureDefaultProject() error = %v", err)
	}
	ver, err := svc.EnsureDefaultVersion(ctx, project.ID)
	if err != nil {
		t.Fatalf("EnsureDefaultVersion() error = %v", err)
	}
	if _, err := svc.CreateTask(ctx, app.CreateTaskInput{
		VersionID: ver.ID,
		Name:      name,
		Phase:     domain.PhaseProduction,
		Priority:  domain.PriorityMedium,
	}); err != nil {
		t.Fatalf("CreateTask() error = %v", err)
	}
}

func TestRunStartsProgram(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{} }

	dbPath := filepath.Join(t.TempDir(), "verkstad.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if _, err := execute(t, "--db", dbPath, "--config", cfgPath); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected database created at %s: %v", dbPath, err)
	}
}

func TestRunPathsCommand(t *testing.T) {
	out, err := execute(t, "paths", "--app", "verkstadtest")
	if err != nil {
		t.Fatalf("execute(paths) error = %v", err)
	}
	for _, want := range []string{"app: verkstadtest", "config:", "data_dir:", "db:"} {
		if !strings.Contains(out, want) {
			t.Fatalf("paths output missing %q:\n%s", want, out)
		}
	}
}

func TestRunExportImportRoundTrip(t *testing.T) {
	srcDB := filepath.Join(t.TempDir(), "src.db")
	dstDB := filepath.Join(t.TempDir(), "dst.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	snapPath := filepath.Join(t.TempDir(), "snapshot.json")
	seedTask(t, srcDB, "Chassi 214")

	if _, err := execute(t, "export", "--db", srcDB, "--config", cfgPath, "--out", snapPath); err != nil {
		t.Fatalf("execute(export) error = %v", err)
	}
	content, err := os.ReadFile(snapPath)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	var snap app.Snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if snap.Version != app.SnapshotVersion {
		t.Fatalf("snapshot version = %q, want %q", snap.Version, app.SnapshotVersion)
	}
	if len(snap.Tasks) != 1 || snap.Tasks[0].Name != "Chassi 214" {
		t.Fatalf("unexpected exported tasks %+v", snap.Tasks)
	}

	if _, err := execute(t, "import", snapPath, "--db", dstDB, "--config", cfgPath); err != nil {
		t.Fatalf("execute(import) error = %v", err)
	}
	repo, err := sqlite.Open(dstDB)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer repo.Close()
	svc := app.NewService(repo, uuid.NewString, nil, app.ServiceConfig{})
	tasks, err := svc.ListTasks(context.Background(), snap.Tasks[0].VersionID)
	if err != nil {
		t.Fatalf("ListTasks() error = %v", err)
	}
	if len(tasks) != 1 || tasks[0].Name != "Chassi 214" {
		t.Fatalf("unexpected imported tasks %+v", tasks)
	}
}

func TestRunExportToStdout(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verkstad.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	out, err := execute(t, "export", "--db", dbPath, "--config", cfgPath)
	if err != nil {
		t.Fatalf("execute(export) error = %v", err)
	}
	if !strings.Contains(out, app.SnapshotVersion) {
		t.Fatalf("expected snapshot header in stdout, got %q", out)
	}
}

func TestRunImportMissingFileFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verkstad.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	if _, err := execute(t, "import", filepath.Join(t.TempDir(), "absent.json"), "--db", dbPath, "--config", cfgPath); err == nil {
		t.Fatal("expected error for missing snapshot file")
	}
}

func TestRunRejectsInvalidLoggingLevelFromConfig(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "verkstad.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	content := "[logging]\nlevel = \"chatty\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := execute(t, "export", "--db", dbPath, "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "parse logging level") {
		t.Fatalf("expected logging level error, got %v", err)
	}
}

func TestRunDevModeCreatesWorkspaceLogFile(t *testing.T) {
	origFactory := programFactory
	t.Cleanup(func() { programFactory = origFactory })
	programFactory = func(_ tea.Model) program { return fakeProgram{} }

	logDir := filepath.Join(t.TempDir(), "logs")
	dbPath := filepath.Join(t.TempDir(), "verkstad.db")
	cfgPath := filepath.Join(t.TempDir(), "config.toml")
	content := "[logging]\nlevel = \"debug\"\n\n[logging.dev_file]\nenabled = true\ndir = \"" + strings.ReplaceAll(logDir, "\\", "\\\\") + "\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := execute(t, "--db", dbPath, "--config", cfgPath, "--dev"); err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	entries, err := os.ReadDir(logDir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".log") {
		t.Fatalf("expected one log file in %s, got %v", logDir, entries)
	}
}

func TestWorkspaceRootFromUsesNearestMarker(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.test\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if got := workspaceRootFrom(nested); got != root {
		t.Fatalf("workspaceRootFrom(%s) = %s, want %s", nested, got, root)
	}

	unmarked := t.TempDir()
	if got := workspaceRootFrom(unmarked); got != unmarked {
		t.Fatalf("workspaceRootFrom(%s) = %s, want start dir", unmarked, got)
	}
}

func TestDevLogFilePathUsesRunDay(t *testing.T) {
	now := time.Date(2026, time.August, 15, 10, 0, 0, 0, time.UTC)
	dir := t.TempDir()
	got, err := devLogFilePath(dir, "verkstad", now)
	if err != nil {
		t.Fatalf("devLogFilePath() error = %v", err)
	}
	want := filepath.Join(dir, "verkstad-20260815.log")
	if got != want {
		t.Fatalf("devLogFilePath() = %s, want %s", got, want)
	}
}

func TestSanitizeLogFileStem(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"verkstad", "verkstad"},
		{"", "verkstad"},
		{"my app:dev", "my-app-dev"},
		{"///", "verkstad"},
	}
	for _, tc := range cases {
		if got := sanitizeLogFileStem(tc.in); got != tc.want {
			t.Fatalf("sanitizeLogFileStem(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("VERKSTAD_BOOL_TEST", "true")
	if got, ok := parseBoolEnv("VERKSTAD_BOOL_TEST"); !ok || !got {
		t.Fatalf("parseBoolEnv(true) = %t, %t", got, ok)
	}
	t.Setenv("VERKSTAD_BOOL_TEST", "not-bool")
	if _, ok := parseBoolEnv("VERKSTAD_BOOL_TEST"); ok {
		t.Fatal("expected invalid boolean to report absence")
	}
	if _, ok := parseBoolEnv("VERKSTAD_BOOL_UNSET"); ok {
		t.Fatal("expected unset variable to report absence")
	}
}
