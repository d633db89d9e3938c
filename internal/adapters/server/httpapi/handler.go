// Package httpapi provides the REST HTTP adapter for the server surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/norrland/verkstad/internal/app"
	"github.com/norrland/verkstad/internal/domain"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// dateLayout is the wire format for calendar-day fields.
const dateLayout = "2006-01-02"

// ErrInvalidRequest marks request decoding and validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	svc *app.Service
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs the HTTP API adapter over the application service.
func NewHandler(svc *app.Service) *Handler {
	return &Handler{svc: svc}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	switch {
	case path == "bootstrap":
		if r.Method != http.MethodGet {
			writeMethodNotAllowed(w, http.MethodGet)
			return
		}
		h.handleBootstrap(w, r)
	case path == "tasks":
		switch r.Method {
		case http.MethodGet:
			h.handleListTasks(w, r)
		case http.MethodPost:
			h.handleCreateTask(w, r)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	case strings.HasPrefix(path, "tasks/"):
		h.routeTask(w, r, strings.TrimPrefix(path, "tasks/"))
	case strings.HasPrefix(path, "steps/"):
		h.routeStep(w, r, strings.TrimPrefix(path, "steps/"))
	default:
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	}
}

// routeTask dispatches `/tasks/{id}`, `/tasks/{id}/schedule` and `/tasks/{id}/steps`.
func (h *Handler) routeTask(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodGet:
			h.handleGetTask(w, r, id)
		case http.MethodPut:
			h.handleUpdateTask(w, r, id)
		case http.MethodDelete:
			h.handleDeleteTask(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
		}
	case "schedule":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleTaskSchedule(w, r, id)
	case "steps":
		switch r.Method {
		case http.MethodGet:
			h.handleListSteps(w, r, id)
		case http.MethodPost:
			h.handleCreateStep(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	default:
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	}
}

// routeStep dispatches `/steps/{id}`, `/steps/{id}/toggle`, `/steps/{id}/reorder`
// and `/steps/{id}/schedule`.
func (h *Handler) routeStep(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
		return
	}
	switch action {
	case "":
		switch r.Method {
		case http.MethodPut:
			h.handleUpdateStep(w, r, id)
		case http.MethodDelete:
			h.handleDeleteStep(w, r, id)
		default:
			writeMethodNotAllowed(w, http.MethodPut, http.MethodDelete)
		}
	case "toggle":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleToggleStep(w, r, id)
	case "reorder":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleReorderStep(w, r, id)
	case "schedule":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleStepSchedule(w, r, id)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: "endpoint not found"})
	}
}

// handleBootstrap serves GET `/bootstrap`: the default project and version,
// created on first call.
func (h *Handler) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	project, err := h.svc.EnsureDefaultProject(r.Context())
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	version, err := h.svc.EnsureDefaultVersion(r.Context(), project.ID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project": map[string]string{"id": project.ID, "name": project.Name},
		"version": map[string]string{"id": version.ID, "name": version.Name},
	})
}

// handleListTasks serves GET `/tasks?version_id=`.
func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	versionID := strings.TrimSpace(r.URL.Query().Get("version_id"))
	if versionID == "" {
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "version_id is required"})
		return
	}
	tasks, err := h.svc.ListTasks(r.Context(), versionID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	out := make([]taskJSON, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToJSON(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": out})
}

type createTaskRequest struct {
	VersionID      string `json:"version_id"`
	Name           string `json:"name"`
	Phase          string `json:"phase,omitempty"`
	Priority       string `json:"priority,omitempty"`
	AssignedTo     string `json:"assigned_to,omitempty"`
	Notes          string `json:"notes,omitempty"`
	StartDate      string `json:"start_date,omitempty"`
	DueDate        string `json:"due_date,omitempty"`
	NoDefaultSteps bool   `json:"no_default_steps,omitempty"`
}

// handleCreateTask serves POST `/tasks`.
func (h *Handler) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.CreateTask(r.Context(), app.CreateTaskInput{
		VersionID:      req.VersionID,
		Name:           req.Name,
		Phase:          domain.Phase(req.Phase),
		Priority:       domain.Priority(req.Priority),
		AssignedTo:     req.AssignedTo,
		Notes:          req.Notes,
		StartDate:      start,
		DueDate:        due,
		NoDefaultSteps: req.NoDefaultSteps,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, taskToJSON(task))
}

// handleGetTask serves GET `/tasks/{id}` with the task's step tree inline.
func (h *Handler) handleGetTask(w http.ResponseWriter, r *http.Request, id string) {
	task, err := h.svc.GetTask(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	tree, err := h.svc.StepTree(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	steps := make([]stepJSON, 0, len(tree.Parents))
	for _, p := range tree.Parents {
		steps = append(steps, stepToJSON(p))
		for _, c := range tree.Children(p.ID) {
			steps = append(steps, stepToJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":  taskToJSON(task),
		"steps": steps,
	})
}

type updateTaskRequest struct {
	Name          string `json:"name"`
	Phase         string `json:"phase"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	AssignedTo    string `json:"assigned_to,omitempty"`
	BlockedReason string `json:"blocked_reason,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

// handleUpdateTask serves PUT `/tasks/{id}`.
func (h *Handler) handleUpdateTask(w http.ResponseWriter, r *http.Request, id string) {
	var req updateTaskRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.UpdateTask(r.Context(), app.UpdateTaskInput{
		TaskID:        id,
		Name:          req.Name,
		Phase:         domain.Phase(req.Phase),
		Status:        domain.TaskStatus(req.Status),
		Priority:      domain.Priority(req.Priority),
		AssignedTo:    req.AssignedTo,
		BlockedReason: req.BlockedReason,
		Notes:         req.Notes,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToJSON(task))
}

// handleDeleteTask serves DELETE `/tasks/{id}`.
func (h *Handler) handleDeleteTask(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.DeleteTask(r.Context(), id); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type scheduleRequest struct {
	StartDate string `json:"start_date,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
}

// handleTaskSchedule serves POST `/tasks/{id}/schedule`. Empty dates clear
// the range.
func (h *Handler) handleTaskSchedule(w http.ResponseWriter, r *http.Request, id string) {
	var req scheduleRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	task, err := h.svc.UpdateTaskSchedule(r.Context(), id, start, due)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToJSON(task))
}

// handleListSteps serves GET `/tasks/{id}/steps`.
func (h *Handler) handleListSteps(w http.ResponseWriter, r *http.Request, taskID string) {
	if _, err := h.svc.GetTask(r.Context(), taskID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	tree, err := h.svc.StepTree(r.Context(), taskID)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	steps := make([]stepJSON, 0, len(tree.Parents))
	for _, p := range tree.Parents {
		steps = append(steps, stepToJSON(p))
		for _, c := range tree.Children(p.ID) {
			steps = append(steps, stepToJSON(c))
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"steps": steps})
}

type createStepRequest struct {
	Name         string `json:"name"`
	ParentStepID string `json:"parent_step_id,omitempty"`
}

// handleCreateStep serves POST `/tasks/{id}/steps`. A parent_step_id makes
// the new step a child item.
func (h *Handler) handleCreateStep(w http.ResponseWriter, r *http.Request, taskID string) {
	var req createStepRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	var (
		step domain.Step
		err  error
	)
	if strings.TrimSpace(req.ParentStepID) == "" {
		step, err = h.svc.AddParentStep(r.Context(), taskID, req.Name)
	} else {
		step, err = h.svc.AddChildStep(r.Context(), taskID, req.ParentStepID, req.Name)
	}
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, stepToJSON(step))
}

type updateStepRequest struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

// handleUpdateStep serves PUT `/steps/{id}`.
func (h *Handler) handleUpdateStep(w http.ResponseWriter, r *http.Request, id string) {
	var req updateStepRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	step, err := h.svc.UpdateStepDetails(r.Context(), app.UpdateStepInput{
		StepID:     id,
		Name:       req.Name,
		Status:     domain.TaskStatus(req.Status),
		AssignedTo: req.AssignedTo,
	})
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepToJSON(step))
}

// handleDeleteStep serves DELETE `/steps/{id}`.
func (h *Handler) handleDeleteStep(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.svc.DeleteStep(r.Context(), id); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleToggleStep serves POST `/steps/{id}/toggle` and returns the task
// with its re-derived progress.
func (h *Handler) handleToggleStep(w http.ResponseWriter, r *http.Request, id string) {
	task, err := h.svc.ToggleStep(r.Context(), id)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, taskToJSON(task))
}

type reorderStepRequest struct {
	Direction string `json:"direction"`
}

// handleReorderStep serves POST `/steps/{id}/reorder`.
func (h *Handler) handleReorderStep(w http.ResponseWriter, r *http.Request, id string) {
	var req reorderStepRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	var dir domain.ReorderDirection
	switch strings.ToLower(strings.TrimSpace(req.Direction)) {
	case "up":
		dir = domain.MoveUp
	case "down":
		dir = domain.MoveDown
	default:
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: "direction must be up or down"})
		return
	}
	if err := h.svc.ReorderStep(r.Context(), id, dir); err != nil {
		writeErrorFrom(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleStepSchedule serves POST `/steps/{id}/schedule`.
func (h *Handler) handleStepSchedule(w http.ResponseWriter, r *http.Request, id string) {
	var req scheduleRequest
	if err := decodeJSONBody(r.Context(), w, r, &req); err != nil {
		writeErrorFrom(w, err)
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	step, err := h.svc.UpdateStepSchedule(r.Context(), id, start, due)
	if err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stepToJSON(step))
}

// taskJSON is the wire shape of a task.
type taskJSON struct {
	ID            string  `json:"id"`
	VersionID     string  `json:"version_id"`
	Name          string  `json:"name"`
	Phase         string  `json:"phase"`
	Status        string  `json:"status"`
	Priority      string  `json:"priority"`
	Progress      float64 `json:"progress"`
	AssignedTo    string  `json:"assigned_to,omitempty"`
	BlockedReason string  `json:"blocked_reason,omitempty"`
	Notes         string  `json:"notes,omitempty"`
	StartDate     string  `json:"start_date,omitempty"`
	DueDate       string  `json:"due_date,omitempty"`
}

func taskToJSON(t domain.Task) taskJSON {
	return taskJSON{
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
		StartDate:     formatDate(t.StartDate),
		DueDate:       formatDate(t.DueDate),
	}
}

// stepJSON is the wire shape of a step.
type stepJSON struct {
	ID           string  `json:"id"`
	TaskID       string  `json:"task_id"`
	ParentStepID string  `json:"parent_step_id,omitempty"`
	Name         string  `json:"name"`
	Weight       float64 `json:"weight"`
	Complete     bool    `json:"complete"`
	SortOrder    int     `json:"sort_order"`
	Status       string  `json:"status"`
	AssignedTo   string  `json:"assigned_to,omitempty"`
	StartDate    string  `json:"start_date,omitempty"`
	DueDate      string  `json:"due_date,omitempty"`
}

func stepToJSON(s domain.Step) stepJSON {
	parentID := ""
	if s.ParentStepID != nil {
		parentID = *s.ParentStepID
	}
	return stepJSON{
		ID:           s.ID,
		TaskID:       s.TaskID,
		ParentStepID: parentID,
		Name:         s.Name,
		Weight:       s.Weight,
		Complete:     s.Complete,
		SortOrder:    s.SortOrder,
		Status:       string(s.Status),
		AssignedTo:   s.AssignedTo,
		StartDate:    formatDate(s.StartDate),
		DueDate:      formatDate(s.DueDate),
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// parseDate parses an optional YYYY-MM-DD wire date. Empty means absent.
func parseDate(v string) (*time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(dateLayout, v, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", v, ErrInvalidRequest)
	}
	return &d, nil
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeErrorFrom maps service errors into structured HTTP responses.
func writeErrorFrom(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: "unknown error"})
	case errors.Is(err, app.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, APIError{Code: "not_found", Message: err.Error()})
	case errors.Is(err, domain.ErrStepHasChildren):
		writeJSONError(w, http.StatusConflict, APIError{Code: "step_has_children", Message: err.Error()})
	case isValidationErr(err):
		writeJSONError(w, http.StatusBadRequest, APIError{Code: "invalid_request", Message: err.Error()})
	default:
		writeJSONError(w, http.StatusInternalServerError, APIError{Code: "internal_error", Message: err.Error()})
	}
}

// isValidationErr reports whether the error is one of the input sentinels.
func isValidationErr(err error) bool {
	for _, sentinel := range []error{
		ErrInvalidRequest,
		domain.ErrInvalidID,
		domain.ErrInvalidName,
		domain.ErrInvalidTaskID,
		domain.ErrInvalidVersionID,
		domain.ErrInvalidPhase,
		domain.ErrInvalidStatus,
		domain.ErrInvalidPriority,
		domain.ErrInvalidSortOrder,
		domain.ErrInvalidWeight,
		domain.ErrInvalidProgress,
		domain.ErrInvalidDateRange,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{Code: "method_not_allowed", Message: "method not allowed"})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeJSONBody decodes one required JSON request body with strict shape checks.
func decodeJSONBody(ctx context.Context, w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode request body: %w", errors.Join(ErrInvalidRequest, err))
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode request body: trailing content: %w", ErrInvalidRequest)
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("request canceled: %w", ctx.Err())
	default:
		return nil
	}
}
