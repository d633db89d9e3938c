package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/norrland/verkstad/internal/app"
	"github.com/norrland/verkstad/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// dateLayout is the storage format for calendar-day columns.
const dateLayout = "2006-01-02"

// Repository is the sqlite implementation of app.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and migrates it.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a shared in-memory database, used by tests.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, "file::memory:?cache=shared")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	repo := &Repository{db: db}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the underlying database.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate applies the idempotent schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			customer TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'Active',
			notes TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS versions (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			name TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			version_id TEXT NOT NULL,
			name TEXT NOT NULL,
			phase TEXT NOT NULL DEFAULT 'MP',
			status TEXT NOT NULL DEFAULT 'Not Started',
			priority TEXT NOT NULL DEFAULT 'Medium',
			progress REAL NOT NULL DEFAULT 0,
			assigned_to TEXT NOT NULL DEFAULT '',
			blocked_reason TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			start_date TEXT,
			due_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(version_id) REFERENCES versions(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS task_steps (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			parent_step_id TEXT,
			name TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 0,
			complete INTEGER NOT NULL DEFAULT 0,
			sort_order INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'Not Started',
			assigned_to TEXT NOT NULL DEFAULT '',
			start_date TEXT,
			due_date TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
			FOREIGN KEY(parent_step_id) REFERENCES task_steps(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_versions_project ON versions(project_id, created_at ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_version ON tasks(version_id, created_at ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_task_steps_task_sort ON task_steps(task_id, sort_order ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_task_steps_parent ON task_steps(parent_step_id);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateProject creates a project row.
func (r *Repository) CreateProject(ctx context.Context, p domain.Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects(id, name, customer, status, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, p.Customer, string(p.Status), p.Notes, ts(p.CreatedAt), ts(p.UpdatedAt))
	return err
}

// UpdateProject updates a project row.
func (r *Repository) UpdateProject(ctx context.Context, p domain.Project) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects
		SET name = ?, customer = ?, status = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`, p.Name, p.Customer, string(p.Status), p.Notes, ts(p.UpdatedAt), p.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetProject returns a project by id.
func (r *Repository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, name, customer, status, notes, created_at, updated_at
		FROM projects
		WHERE id = ?
	`, id)
	return scanProject(row)
}

// ListProjects lists projects oldest first.
func (r *Repository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, customer, status, notes, created_at, updated_at
		FROM projects
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// CreateVersion creates a version row.
func (r *Repository) CreateVersion(ctx context.Context, v domain.Version) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO versions(id, project_id, name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, v.ID, v.ProjectID, v.Name, ts(v.CreatedAt), ts(v.UpdatedAt))
	return err
}

// UpdateVersion updates a version row.
func (r *Repository) UpdateVersion(ctx context.Context, v domain.Version) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE versions
		SET name = ?, updated_at = ?
		WHERE id = ?
	`, v.Name, ts(v.UpdatedAt), v.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetVersion returns a version by id.
func (r *Repository) GetVersion(ctx context.Context, id string) (domain.Version, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, created_at, updated_at
		FROM versions
		WHERE id = ?
	`, id)
	return scanVersion(row)
}

// ListVersions lists a project's versions oldest first.
func (r *Repository) ListVersions(ctx context.Context, projectID string) ([]domain.Version, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, name, created_at, updated_at
		FROM versions
		WHERE project_id = ?
		ORDER BY created_at ASC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// CreateTask creates a task row.
func (r *Repository) CreateTask(ctx context.Context, t domain.Task) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO tasks(
			id, version_id, name, phase, status, priority, progress,
			assigned_to, blocked_reason, notes, start_date, due_date,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.VersionID, t.Name, string(t.Phase), string(t.Status), string(t.Priority), t.Progress,
		t.AssignedTo, t.BlockedReason, t.Notes, nullableDate(t.StartDate), nullableDate(t.DueDate),
		ts(t.CreatedAt), ts(t.UpdatedAt))
	return err
}

// UpdateTask updates a task row.
func (r *Repository) UpdateTask(ctx context.Context, t domain.Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET name = ?, phase = ?, status = ?, priority = ?, progress = ?,
			assigned_to = ?, blocked_reason = ?, notes = ?,
			start_date = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`, t.Name, string(t.Phase), string(t.Status), string(t.Priority), t.Progress,
		t.AssignedTo, t.BlockedReason, t.Notes,
		nullableDate(t.StartDate), nullableDate(t.DueDate), ts(t.UpdatedAt), t.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetTask returns a task by id.
func (r *Repository) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, version_id, name, phase, status, priority, progress,
			assigned_to, blocked_reason, notes, start_date, due_date,
			created_at, updated_at
		FROM tasks
		WHERE id = ?
	`, id)
	return scanTask(row)
}

// ListTasks lists a version's tasks oldest first. Phase ordering is the
// service's concern.
func (r *Repository) ListTasks(ctx context.Context, versionID string) ([]domain.Task, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version_id, name, phase, status, priority, progress,
			assigned_to, blocked_reason, notes, start_date, due_date,
			created_at, updated_at
		FROM tasks
		WHERE version_id = ?
		ORDER BY created_at ASC
	`, versionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// DeleteTask deletes a task and its steps.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Cascade explicitly; foreign_keys enforcement is per-connection.
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_steps WHERE task_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := translateNoRows(res); err != nil {
		return err
	}
	return tx.Commit()
}

// CreateStep creates a step row.
func (r *Repository) CreateStep(ctx context.Context, s domain.Step) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO task_steps(
			id, task_id, parent_step_id, name, weight, complete, sort_order,
			status, assigned_to, start_date, due_date, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.TaskID, nullableStr(s.ParentStepID), s.Name, s.Weight, boolInt(s.Complete), s.SortOrder,
		string(s.Status), s.AssignedTo, nullableDate(s.StartDate), nullableDate(s.DueDate),
		ts(s.CreatedAt), ts(s.UpdatedAt))
	return err
}

// UpdateStep updates a step row.
func (r *Repository) UpdateStep(ctx context.Context, s domain.Step) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_steps
		SET name = ?, weight = ?, complete = ?, sort_order = ?,
			status = ?, assigned_to = ?, start_date = ?, due_date = ?, updated_at = ?
		WHERE id = ?
	`, s.Name, s.Weight, boolInt(s.Complete), s.SortOrder,
		string(s.Status), s.AssignedTo, nullableDate(s.StartDate), nullableDate(s.DueDate), ts(s.UpdatedAt), s.ID)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// GetStep returns a step by id.
func (r *Repository) GetStep(ctx context.Context, id string) (domain.Step, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, task_id, parent_step_id, name, weight, complete, sort_order,
			status, assigned_to, start_date, due_date, created_at, updated_at
		FROM task_steps
		WHERE id = ?
	`, id)
	return scanStep(row)
}

// ListSteps lists a task's steps in sort order.
func (r *Repository) ListSteps(ctx context.Context, taskID string) ([]domain.Step, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, task_id, parent_step_id, name, weight, complete, sort_order,
			status, assigned_to, start_date, due_date, created_at, updated_at
		FROM task_steps
		WHERE task_id = ?
		ORDER BY sort_order ASC, created_at ASC
	`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Step{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteStep deletes a step row.
func (r *Repository) DeleteStep(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM task_steps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// scanner represents the shared Scan contract of Row and Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (domain.Project, error) {
	var (
		p          domain.Project
		status     string
		createdRaw string
		updatedRaw string
	)
	err := s.Scan(&p.ID, &p.Name, &p.Customer, &status, &p.Notes, &createdRaw, &updatedRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Project{}, app.ErrNotFound
		}
		return domain.Project{}, err
	}
	p.Status = domain.ProjectStatus(status)
	p.CreatedAt = parseTS(createdRaw)
	p.UpdatedAt = parseTS(updatedRaw)
	return p, nil
}

func scanVersion(s scanner) (domain.Version, error) {
	var (
		v          domain.Version
		createdRaw string
		updatedRaw string
	)
	err := s.Scan(&v.ID, &v.ProjectID, &v.Name, &createdRaw, &updatedRaw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Version{}, app.ErrNotFound
		}
		return domain.Version{}, err
	}
	v.CreatedAt = parseTS(createdRaw)
	v.UpdatedAt = parseTS(updatedRaw)
	return v, nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t          domain.Task
		phase      string
		status     string
		priority   string
		startRaw   sql.NullString
		dueRaw     sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := s.Scan(
		&t.ID, &t.VersionID, &t.Name, &phase, &status, &priority, &t.Progress,
		&t.AssignedTo, &t.BlockedReason, &t.Notes, &startRaw, &dueRaw,
		&createdRaw, &updatedRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Task{}, app.ErrNotFound
		}
		return domain.Task{}, err
	}
	t.Phase = domain.Phase(phase)
	t.Status = domain.TaskStatus(status)
	t.Priority = domain.Priority(priority)
	t.StartDate = parseNullDate(startRaw)
	t.DueDate = parseNullDate(dueRaw)
	t.CreatedAt = parseTS(createdRaw)
	t.UpdatedAt = parseTS(updatedRaw)
	return t, nil
}

func scanStep(s scanner) (domain.Step, error) {
	var (
		st         domain.Step
		parentRaw  sql.NullString
		complete   int
		status     string
		startRaw   sql.NullString
		dueRaw     sql.NullString
		createdRaw string
		updatedRaw string
	)
	err := s.Scan(
		&st.ID, &st.TaskID, &parentRaw, &st.Name, &st.Weight, &complete, &st.SortOrder,
		&status, &st.AssignedTo, &startRaw, &dueRaw, &createdRaw, &updatedRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Step{}, app.ErrNotFound
		}
		return domain.Step{}, err
	}
	if parentRaw.Valid && strings.TrimSpace(parentRaw.String) != "" {
		parent := parentRaw.String
		st.ParentStepID = &parent
	}
	st.Complete = complete != 0
	st.Status = domain.TaskStatus(status)
	st.StartDate = parseNullDate(startRaw)
	st.DueDate = parseNullDate(dueRaw)
	st.CreatedAt = parseTS(createdRaw)
	st.UpdatedAt = parseTS(updatedRaw)
	return st, nil
}

// translateNoRows maps a zero-row write to app.ErrNotFound.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

// nullableDate stores a calendar day as YYYY-MM-DD, or NULL.
func nullableDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(dateLayout)
}

func parseNullDate(v sql.NullString) *time.Time {
	if !v.Valid || strings.TrimSpace(v.String) == "" {
		return nil
	}
	d, err := time.ParseInLocation(dateLayout, v.String, time.UTC)
	if err != nil {
		return nil
	}
	return &d
}

func nullableStr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
