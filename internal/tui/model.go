package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"
	"time"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"
	"github.com/norrland/verkstad/internal/app"
	"github.com/norrland/verkstad/internal/domain"
	"github.com/norrland/verkstad/internal/timeline"
)

// Service represents service data used by this package.
type Service interface {
	EnsureDefaultProject(context.Context) (domain.Project, error)
	EnsureDefaultVersion(context.Context, string) (domain.Version, error)
	ListTasks(context.Context, string) ([]domain.Task, error)
	CreateTask(context.Context, app.CreateTaskInput) (domain.Task, error)
	DeleteTask(context.Context, string) error
	UpdateTaskSchedule(context.Context, string, *time.Time, *time.Time) (domain.Task, error)
	StepTree(context.Context, string) (domain.StepTree, error)
	AddParentStep(context.Context, string, string) (domain.Step, error)
	AddChildStep(context.Context, string, string, string) (domain.Step, error)
	DeleteStep(context.Context, string) error
	ToggleStep(context.Context, string) (domain.Task, error)
	ReorderStep(context.Context, string, domain.ReorderDirection) error
	UpdateStepDetails(context.Context, app.UpdateStepInput) (domain.Step, error)
}

// viewMode selects the active main view.
type viewMode int

const (
	viewCards viewMode = iota
	viewGantt
)

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeAddTask
	modeAddStep
	modeAddChild
	modeRenameStep
	modeConfirm
	modeTaskInfo
)

// gantt layout constants shared by rendering and mouse hit testing.
const (
	ganttLabelWidth = 24
	ganttHeaderRows = 4
	defaultDayCells = 4
)

// stepRow is one flattened, display-ordered checklist row.
type stepRow struct {
	step  domain.Step
	depth int
}

// confirmAction describes a pending confirmation action.
type confirmAction struct {
	kind  string // "task" or "step"
	id    string
	label string
}

// Model represents model data used by this package.
type Model struct {
	svc Service

	ready  bool
	width  int
	height int
	err    error

	status string

	help help.Model
	keys keyMap

	fields   FieldConfig
	dayWidth int
	now      func() time.Time

	view    viewMode
	project domain.Project
	version domain.Version

	tasks        []domain.Task
	selectedTask int
	tree         domain.StepTree
	rows         []stepRow
	selectedStep int

	mode        inputMode
	input       textinput.Model
	inputTarget string
	pending     confirmAction

	window timeline.Window
	geom   timeline.Geometry
	drag   *timeline.Interaction

	notes    notesRenderer

	pendingFocusTaskID string
}

// loadedMsg carries message data through update handling.
type loadedMsg struct {
	project domain.Project
	version domain.Version
	tasks   []domain.Task
	tree    domain.StepTree
	err     error
}

// actionMsg carries message data through update handling.
type actionMsg struct {
	err         error
	status      string
	reload      bool
	focusTaskID string
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	input := textinput.New()
	input.Prompt = ""
	input.CharLimit = 120
	m := Model{
		svc:      svc,
		status:   "loading...",
		help:     h,
		keys:     newKeyMap(),
		fields:   DefaultFieldConfig(),
		dayWidth: defaultDayCells,
		now:      time.Now,
		input:    input,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	m.drag = timeline.NewInteraction(timeline.NewGeometry(timeline.DefaultWindow(nil, m.now()), m.dayWidth))
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.project = msg.project
		m.version = msg.version
		m.tasks = msg.tasks
		if m.pendingFocusTaskID != "" {
			for idx, task := range m.tasks {
				if task.ID == m.pendingFocusTaskID {
					m.selectedTask = idx
					break
				}
			}
			m.pendingFocusTaskID = ""
		}
		m.selectedTask = clamp(m.selectedTask, 0, len(m.tasks)-1)
		m.tree = msg.tree
		m.rows = flattenTree(msg.tree)
		m.selectedStep = clamp(m.selectedStep, 0, len(m.rows)-1)
		m.rebuildTimeline()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		if msg.status != "" {
			m.status = msg.status
		}
		if msg.focusTaskID != "" {
			m.pendingFocusTaskID = msg.focusTaskID
		}
		if msg.reload {
			return m, m.loadData
		}
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleInputModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	case tea.MouseClickMsg:
		return m.handleMouseClick(msg)

	case tea.MouseMotionMsg:
		return m.handleMouseMotion(msg)

	case tea.MouseReleaseMsg:
		return m.handleMouseRelease(msg)

	case tea.MouseWheelMsg:
		return m.handleMouseWheel(msg)

	default:
		return m, nil
	}
}

// handleNormalModeKey handles keys while no overlay or text input is active.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.switchView):
		if m.view == viewCards {
			m.view = viewGantt
		} else {
			m.view = viewCards
		}
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		m.mode = modeAddTask
		m.input.SetValue("")
		m.input.Placeholder = "task name"
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.deleteTask):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		m.mode = modeConfirm
		m.pending = confirmAction{kind: "task", id: task.ID, label: task.Name}
		return m, nil
	case key.Matches(msg, m.keys.yank):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		return m, m.yankSummary(task)
	}
	if m.view == viewGantt {
		return m.handleGanttKey(msg)
	}
	return m.handleCardsKey(msg)
}

// handleCardsKey handles card-view keys: step navigation and checklist edits.
func (m Model) handleCardsKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.prevTask):
		return m.selectTask(m.selectedTask - 1)
	case key.Matches(msg, m.keys.nextTask):
		return m.selectTask(m.selectedTask + 1)
	case key.Matches(msg, m.keys.moveUp):
		m.selectedStep = clamp(m.selectedStep-1, 0, len(m.rows)-1)
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedStep = clamp(m.selectedStep+1, 0, len(m.rows)-1)
		return m, nil
	case key.Matches(msg, m.keys.taskInfo):
		if _, ok := m.currentTask(); ok {
			m.mode = modeTaskInfo
		}
		return m, nil
	case key.Matches(msg, m.keys.toggleStep):
		row, ok := m.currentStep()
		if !ok {
			return m, nil
		}
		return m, m.toggleStepCmd(row.step.ID)
	case key.Matches(msg, m.keys.addStep):
		task, ok := m.currentTask()
		if !ok {
			return m, nil
		}
		m.mode = modeAddStep
		m.inputTarget = task.ID
		m.input.SetValue("")
		m.input.Placeholder = "step name"
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.addChild):
		task, taskOK := m.currentTask()
		row, rowOK := m.currentStep()
		if !taskOK || !rowOK {
			return m, nil
		}
		parentID := row.step.ID
		if row.step.ParentStepID != nil {
			parentID = *row.step.ParentStepID
		}
		m.mode = modeAddChild
		m.inputTarget = task.ID + "/" + parentID
		m.input.SetValue("")
		m.input.Placeholder = "sub-step name"
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.renameStep):
		row, ok := m.currentStep()
		if !ok {
			return m, nil
		}
		m.mode = modeRenameStep
		m.inputTarget = row.step.ID
		m.input.SetValue(row.step.Name)
		m.input.Placeholder = "step name"
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.deleteStep):
		row, ok := m.currentStep()
		if !ok {
			return m, nil
		}
		m.mode = modeConfirm
		m.pending = confirmAction{kind: "step", id: row.step.ID, label: row.step.Name}
		return m, nil
	case key.Matches(msg, m.keys.stepUp):
		row, ok := m.currentStep()
		if !ok {
			return m, nil
		}
		m.selectedStep = clamp(m.selectedStep-1, 0, len(m.rows)-1)
		return m, m.reorderStepCmd(row.step.ID, domain.MoveUp)
	case key.Matches(msg, m.keys.stepDown):
		row, ok := m.currentStep()
		if !ok {
			return m, nil
		}
		m.selectedStep = clamp(m.selectedStep+1, 0, len(m.rows)-1)
		return m, m.reorderStepCmd(row.step.ID, domain.MoveDown)
	}
	return m, nil
}

// handleGanttKey handles gantt-view keys: the keyboard scheduling fallback.
func (m Model) handleGanttKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	task, ok := m.currentTask()
	switch {
	case key.Matches(msg, m.keys.moveUp):
		return m.selectTask(m.selectedTask - 1)
	case key.Matches(msg, m.keys.moveDown):
		return m.selectTask(m.selectedTask + 1)
	case key.Matches(msg, m.keys.scheduleToday):
		if !ok {
			return m, nil
		}
		today := timeline.Normalize(m.now())
		return m, m.scheduleTaskCmd(task.ID, &today, &today)
	case key.Matches(msg, m.keys.clearDates):
		if !ok {
			return m, nil
		}
		return m, m.scheduleTaskCmd(task.ID, nil, nil)
	case key.Matches(msg, m.keys.barLeft):
		return m.nudgeSchedule(task, ok, -1, -1)
	case key.Matches(msg, m.keys.barRight):
		return m.nudgeSchedule(task, ok, 1, 1)
	case key.Matches(msg, m.keys.startEarlier):
		return m.nudgeSchedule(task, ok, -1, 0)
	case key.Matches(msg, m.keys.startLater):
		return m.nudgeSchedule(task, ok, 1, 0)
	case key.Matches(msg, m.keys.dueEarlier):
		return m.nudgeSchedule(task, ok, 0, -1)
	case key.Matches(msg, m.keys.dueLater):
		return m.nudgeSchedule(task, ok, 0, 1)
	}
	return m, nil
}

// nudgeSchedule shifts a scheduled bar's endpoints by whole days. Resizes
// clamp the same way pointer drags do; unscheduled tasks ignore nudges.
func (m Model) nudgeSchedule(task domain.Task, ok bool, startDays, dueDays int) (tea.Model, tea.Cmd) {
	if !ok || task.StartDate == nil || task.DueDate == nil {
		return m, nil
	}
	start := task.StartDate.Add(time.Duration(startDays) * timeline.Day)
	due := task.DueDate.Add(time.Duration(dueDays) * timeline.Day)
	if start.After(due) {
		if startDays != 0 && dueDays == 0 {
			start = due
		} else {
			due = start
		}
	}
	return m, m.scheduleTaskCmd(task.ID, &start, &due)
}

// handleInputModeKey routes keys while a prompt or overlay is open.
func (m Model) handleInputModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if m.mode == modeTaskInfo {
		switch msg.String() {
		case "esc", "q", "i", "enter":
			m.mode = modeNone
		}
		return m, nil
	}
	if m.mode == modeConfirm {
		switch msg.String() {
		case "y", "enter":
			pending := m.pending
			m.mode = modeNone
			m.pending = confirmAction{}
			if pending.kind == "task" {
				return m, m.deleteTaskCmd(pending.id, pending.label)
			}
			return m, m.deleteStepCmd(pending.id, pending.label)
		case "n", "esc":
			m.mode = modeNone
			m.pending = confirmAction{}
			m.status = "cancelled"
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.mode = modeNone
		m.input.Blur()
		m.status = "cancelled"
		return m, nil
	case "enter":
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		target := m.inputTarget
		m.mode = modeNone
		m.input.Blur()
		if value == "" {
			m.status = "cancelled"
			return m, nil
		}
		switch mode {
		case modeAddTask:
			return m, m.createTaskCmd(value)
		case modeAddStep:
			return m, m.addParentStepCmd(target, value)
		case modeAddChild:
			taskID, parentID, _ := strings.Cut(target, "/")
			return m, m.addChildStepCmd(taskID, parentID, value)
		case modeRenameStep:
			return m, m.renameStepCmd(target, value)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleMouseClick starts a gantt gesture or moves the selection.
func (m Model) handleMouseClick(msg tea.MouseClickMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone || m.view != viewGantt || msg.Button != tea.MouseLeft {
		return m, nil
	}
	idx := msg.Y - ganttHeaderRows
	if idx < 0 || idx >= len(m.tasks) {
		return m, nil
	}
	m.selectedTask = idx
	task := m.tasks[idx]

	x := msg.X - ganttLabelWidth
	if x < 0 {
		return m, nil
	}

	if task.StartDate != nil && task.DueDate != nil {
		bar := m.geom.BarGeometry(task.StartDate, task.DueDate)
		if x >= bar.Left && x < bar.Left+bar.Width {
			edge := timeline.EdgeMove
			if bar.Width > 2*m.geom.DayWidth {
				if x < bar.Left+m.geom.DayWidth {
					edge = timeline.EdgeLeft
				} else if x >= bar.Left+bar.Width-m.geom.DayWidth {
					edge = timeline.EdgeRight
				}
			}
			m.drag.StartDrag(task.ID, edge, x, *task.StartDate, *task.DueDate)
		}
		return m, nil
	}

	// Only fully unscheduled rows are a draw surface. A row with a single
	// date shows a one-day marker and ignores clicks, so a stray click
	// cannot overwrite a partially entered schedule.
	if task.StartDate == nil && task.DueDate == nil {
		m.drag.StartDraw(task.ID, x)
	}
	return m, nil
}

// handleMouseMotion advances the in-flight gantt gesture.
func (m Model) handleMouseMotion(msg tea.MouseMotionMsg) (tea.Model, tea.Cmd) {
	if m.view != viewGantt || m.drag.Idle() {
		return m, nil
	}
	m.drag.Move(msg.X - ganttLabelWidth)
	return m, nil
}

// handleMouseRelease finishes the gesture and commits the resulting range.
func (m Model) handleMouseRelease(msg tea.MouseReleaseMsg) (tea.Model, tea.Cmd) {
	if m.view != viewGantt || m.drag.Idle() {
		return m, nil
	}
	m.drag.Move(msg.X - ganttLabelWidth)
	commit, ok := m.drag.Release()
	if !ok {
		return m, nil
	}
	start, due := commit.Start, commit.Due
	return m, m.scheduleTaskCmd(commit.TargetID, &start, &due)
}

// handleMouseWheel handles mouse wheel.
func (m Model) handleMouseWheel(msg tea.MouseWheelMsg) (tea.Model, tea.Cmd) {
	if m.mode != modeNone {
		return m, nil
	}
	switch msg.Button {
	case tea.MouseWheelUp:
		if m.view == viewGantt {
			model, cmd := m.selectTask(m.selectedTask - 1)
			return model, cmd
		}
		m.selectedStep = clamp(m.selectedStep-1, 0, len(m.rows)-1)
	case tea.MouseWheelDown:
		if m.view == viewGantt {
			model, cmd := m.selectTask(m.selectedTask + 1)
			return model, cmd
		}
		m.selectedStep = clamp(m.selectedStep+1, 0, len(m.rows)-1)
	}
	return m, nil
}

// selectTask moves the task selection and reloads its checklist.
func (m Model) selectTask(idx int) (tea.Model, tea.Cmd) {
	if len(m.tasks) == 0 {
		return m, nil
	}
	next := clamp(idx, 0, len(m.tasks)-1)
	if next == m.selectedTask {
		return m, nil
	}
	m.selectedTask = next
	m.selectedStep = 0
	return m, m.loadData
}

// currentTask returns the selected task, if any.
func (m Model) currentTask() (domain.Task, bool) {
	if len(m.tasks) == 0 {
		return domain.Task{}, false
	}
	return m.tasks[clamp(m.selectedTask, 0, len(m.tasks)-1)], true
}

// currentStep returns the selected checklist row, if any.
func (m Model) currentStep() (stepRow, bool) {
	if len(m.rows) == 0 {
		return stepRow{}, false
	}
	return m.rows[clamp(m.selectedStep, 0, len(m.rows)-1)], true
}

// rebuildTimeline re-derives window and geometry from the loaded schedule
// extent and resets any in-flight gesture against the new geometry.
func (m *Model) rebuildTimeline() {
	var dates []time.Time
	for _, task := range m.tasks {
		if task.StartDate != nil {
			dates = append(dates, *task.StartDate)
		}
		if task.DueDate != nil {
			dates = append(dates, *task.DueDate)
		}
	}
	m.window = timeline.DefaultWindow(dates, m.now())
	m.geom = timeline.NewGeometry(m.window, m.dayWidth)
	m.drag.Reset(m.geom)
}

// loadData loads the default project, its tasks and the selected checklist.
func (m Model) loadData() tea.Msg {
	ctx := context.Background()
	project, err := m.svc.EnsureDefaultProject(ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	version, err := m.svc.EnsureDefaultVersion(ctx, project.ID)
	if err != nil {
		return loadedMsg{err: err}
	}
	tasks, err := m.svc.ListTasks(ctx, version.ID)
	if err != nil {
		return loadedMsg{err: err}
	}

	var tree domain.StepTree
	if len(tasks) > 0 {
		focusID := tasks[clamp(m.selectedTask, 0, len(tasks)-1)].ID
		if pending := strings.TrimSpace(m.pendingFocusTaskID); pending != "" {
			for _, task := range tasks {
				if task.ID == pending {
					focusID = task.ID
					break
				}
			}
		}
		tree, err = m.svc.StepTree(ctx, focusID)
		if err != nil {
			return loadedMsg{err: err}
		}
	}

	return loadedMsg{project: project, version: version, tasks: tasks, tree: tree}
}

func (m Model) createTaskCmd(name string) tea.Cmd {
	versionID := m.version.ID
	return func() tea.Msg {
		task, err := m.svc.CreateTask(context.Background(), app.CreateTaskInput{
			VersionID: versionID,
			Name:      name,
		})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "task created", reload: true, focusTaskID: task.ID}
	}
}

func (m Model) deleteTaskCmd(taskID, label string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteTask(context.Background(), taskID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "deleted " + label, reload: true}
	}
}

func (m Model) toggleStepCmd(stepID string) tea.Cmd {
	return func() tea.Msg {
		task, err := m.svc.ToggleStep(context.Background(), stepID)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{
			status: fmt.Sprintf("progress %d%%", int(task.Progress*100+0.5)),
			reload: true,
		}
	}
}

func (m Model) addParentStepCmd(taskID, name string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.AddParentStep(context.Background(), taskID, name); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "step added", reload: true}
	}
}

func (m Model) addChildStepCmd(taskID, parentID, name string) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.AddChildStep(context.Background(), taskID, parentID, name); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "sub-step added", reload: true}
	}
}

func (m Model) renameStepCmd(stepID, name string) tea.Cmd {
	return func() tea.Msg {
		step, err := m.findStep(stepID)
		if err != nil {
			return actionMsg{err: err}
		}
		_, err = m.svc.UpdateStepDetails(context.Background(), app.UpdateStepInput{
			StepID:     stepID,
			Name:       name,
			Status:     step.Status,
			AssignedTo: step.AssignedTo,
		})
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "step renamed", reload: true}
	}
}

func (m Model) deleteStepCmd(stepID, label string) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.DeleteStep(context.Background(), stepID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: "deleted " + label, reload: true}
	}
}

func (m Model) reorderStepCmd(stepID string, dir domain.ReorderDirection) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.ReorderStep(context.Background(), stepID, dir); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{reload: true}
	}
}

func (m Model) scheduleTaskCmd(taskID string, start, due *time.Time) tea.Cmd {
	return func() tea.Msg {
		if _, err := m.svc.UpdateTaskSchedule(context.Background(), taskID, start, due); err != nil {
			return actionMsg{err: err}
		}
		status := "dates cleared"
		if start != nil && due != nil {
			status = fmt.Sprintf("scheduled %s → %s", start.Format("Jan 2"), due.Format("Jan 2"))
		}
		return actionMsg{status: status, reload: true}
	}
}

// yankSummary copies a markdown checklist summary of the task to the system
// clipboard.
func (m Model) yankSummary(task domain.Task) tea.Cmd {
	tree := m.tree
	return func() tea.Msg {
		var b strings.Builder
		fmt.Fprintf(&b, "# %s\n\n", task.Name)
		fmt.Fprintf(&b, "- Phase: %s\n- Status: %s\n- Priority: %s\n- Progress: %d%%\n",
			task.Phase, task.Status, task.Priority, int(task.Progress*100+0.5))
		if task.StartDate != nil && task.DueDate != nil {
			fmt.Fprintf(&b, "- Schedule: %s → %s\n",
				task.StartDate.Format("2006-01-02"), task.DueDate.Format("2006-01-02"))
		}
		b.WriteString("\n")
		for _, parent := range tree.Parents {
			fmt.Fprintf(&b, "- [%s] %s\n", checkmark(domain.EffectiveComplete(parent, tree.Children(parent.ID))), parent.Name)
			for _, child := range tree.Children(parent.ID) {
				fmt.Fprintf(&b, "  - [%s] %s\n", checkmark(child.Complete), child.Name)
			}
		}
		if err := clipboard.WriteAll(b.String()); err != nil {
			return actionMsg{err: fmt.Errorf("copy to clipboard: %w", err)}
		}
		return actionMsg{status: "summary copied"}
	}
}

func (m Model) findStep(stepID string) (domain.Step, error) {
	for _, row := range m.rows {
		if row.step.ID == stepID {
			return row.step, nil
		}
	}
	return domain.Step{}, app.ErrNotFound
}

// View handles view.
func (m Model) View() tea.View {
	if m.err != nil {
		v := tea.NewView("error: " + m.err.Error() + "\n\npress r to retry • q quit\n")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}
	if !m.ready {
		v := tea.NewView("loading...")
		v.MouseMode = tea.MouseModeCellMotion
		v.AltScreen = true
		return v
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("verkstad") + "  " + m.project.Name
	if m.version.Name != "" {
		header += statusStyle.Render(" / " + m.version.Name)
	}
	header += statusStyle.Render("  [" + m.modeLabel() + "]")

	var body string
	if m.view == viewGantt {
		body = m.renderGantt(accent, muted, dim)
	} else {
		body = m.renderCards(accent, muted, dim)
	}

	sections := []string{header, m.renderTabs(accent, dim), body}
	if prompt := m.renderPrompt(muted); prompt != "" {
		sections = append(sections, prompt)
	}
	if strings.TrimSpace(m.status) != "" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}

	v := tea.NewView(content + "\n" + helpLine)
	v.MouseMode = tea.MouseModeCellMotion
	v.AltScreen = true
	return v
}

// renderTabs renders the view switcher line.
func (m Model) renderTabs(accent, dim color.Color) string {
	active := lipgloss.NewStyle().Bold(true).Foreground(accent)
	inactive := lipgloss.NewStyle().Foreground(dim)
	cards, gantt := inactive.Render("Cards"), inactive.Render("Gantt")
	if m.view == viewCards {
		cards = active.Render("Cards")
	} else {
		gantt = active.Render("Gantt")
	}
	return cards + inactive.Render(" │ ") + gantt
}

// renderCards renders the task list next to the selected task's checklist.
func (m Model) renderCards(accent, muted, dim color.Color) string {
	if len(m.tasks) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("No tasks yet. Press T to add one.")
	}

	listWidth := clamp(m.width*2/5, 28, 60)
	stepWidth := max(28, m.width-listWidth-6)

	selStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)

	var taskLines []string
	for idx, task := range m.tasks {
		marker := "  "
		nameLine := truncate(task.Name, listWidth-4)
		if idx == m.selectedTask {
			marker = "▸ "
			nameLine = selStyle.Render(nameLine)
		}
		taskLines = append(taskLines, marker+nameLine)
		meta := fmt.Sprintf("%s · %s · %s %d%%", task.Phase, task.Priority,
			renderProgressBar(task.Progress, 10), int(task.Progress*100+0.5))
		taskLines = append(taskLines, "  "+subStyle.Render(truncate(meta, listWidth-4)))
		if m.fields.ShowDueDate && task.DueDate != nil {
			taskLines = append(taskLines, "  "+subStyle.Render("due "+task.DueDate.Format("2006-01-02")))
		}
		if m.fields.ShowAssignee && task.AssignedTo != "" {
			taskLines = append(taskLines, "  "+subStyle.Render("@"+task.AssignedTo))
		}
	}

	var stepPane string
	if m.mode == modeTaskInfo {
		stepPane = m.renderTaskInfo(accent, muted, stepWidth)
	} else {
		stepPane = m.renderSteps(muted, stepWidth)
	}

	borderStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1)
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)

	left := borderStyle.Width(listWidth).Render(
		titleStyle.Render(fmt.Sprintf("Tasks (%d)", len(m.tasks))) + "\n" + strings.Join(taskLines, "\n"))
	right := borderStyle.Width(stepWidth).BorderForeground(accent).Render(stepPane)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

// renderSteps renders the selected task's checklist rows.
func (m Model) renderSteps(muted color.Color, width int) string {
	task, ok := m.currentTask()
	if !ok {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	selStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle := lipgloss.NewStyle().Foreground(muted).Strikethrough(true)

	lines := []string{titleStyle.Render(truncate(task.Name, width-2)), ""}
	if len(m.rows) == 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(muted).Render("no steps · press n to add one"))
		return strings.Join(lines, "\n")
	}
	for idx, row := range m.rows {
		complete := row.step.Complete
		if row.step.IsParent() {
			complete = domain.EffectiveComplete(row.step, m.tree.Children(row.step.ID))
		}
		line := strings.Repeat("  ", row.depth) + "[" + checkmark(complete) + "] " + row.step.Name
		line = truncate(line, width-2)
		switch {
		case idx == m.selectedStep:
			line = selStyle.Render(line)
		case complete:
			line = doneStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// renderTaskInfo renders the task detail overlay pane.
func (m *Model) renderTaskInfo(accent, muted color.Color, width int) string {
	task, ok := m.currentTask()
	if !ok {
		return ""
	}
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	metaStyle := lipgloss.NewStyle().Foreground(muted)

	lines := []string{
		titleStyle.Render(truncate(task.Name, width-2)),
		metaStyle.Render("phase: " + domain.PhaseLabel(task.Phase)),
		metaStyle.Render(fmt.Sprintf("status: %s · priority: %s", task.Status, task.Priority)),
		metaStyle.Render(fmt.Sprintf("progress: %s %d%%", renderProgressBar(task.Progress, 16), int(task.Progress*100+0.5))),
	}
	if task.AssignedTo != "" {
		lines = append(lines, metaStyle.Render("assignee: "+task.AssignedTo))
	}
	if task.StartDate != nil || task.DueDate != nil {
		lines = append(lines, metaStyle.Render(fmt.Sprintf("schedule: %s → %s",
			formatOptionalDate(task.StartDate), formatOptionalDate(task.DueDate))))
	}
	if task.BlockedReason != "" {
		lines = append(lines, metaStyle.Render("blocked: "+task.BlockedReason))
	}
	if task.Notes != "" {
		lines = append(lines, "", m.notes.render(task.Notes, width-4))
	}
	lines = append(lines, "", metaStyle.Render("esc to close"))
	return strings.Join(lines, "\n")
}

// renderGantt renders the month header, day grid and one bar row per task.
func (m Model) renderGantt(accent, muted, dim color.Color) string {
	if len(m.tasks) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("No tasks yet. Press T to add one.")
	}

	days := m.window.Days()
	chartWidth := len(days) * m.geom.DayWidth
	maxChart := max(m.geom.DayWidth, m.width-ganttLabelWidth-1)

	monthStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	gridStyle := lipgloss.NewStyle().Foreground(dim)
	selStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	barStyle := lipgloss.NewStyle().Foreground(accent)

	var monthRow strings.Builder
	for _, group := range timeline.MonthGroups(days) {
		span := group.SpanDays * m.geom.DayWidth
		monthRow.WriteString(padRight(truncate(group.Label, span), span))
	}

	var dayRow strings.Builder
	for _, d := range days {
		dayRow.WriteString(padRight(fmt.Sprintf("%d", d.Day()), m.geom.DayWidth))
	}

	todayCol := -1
	if offset, ok := m.geom.TodayOffset(m.now()); ok {
		todayCol = offset
	}

	lines := []string{
		padRight("", ganttLabelWidth) + monthStyle.Render(truncate(monthRow.String(), maxChart)),
		padRight("", ganttLabelWidth) + gridStyle.Render(truncate(dayRow.String(), maxChart)),
	}

	for idx, task := range m.tasks {
		cells := make([]rune, chartWidth)
		for col, d := range days {
			ch := ' '
			if m.fields.WeekendShading && timeline.IsWeekend(d) {
				ch = '░'
			}
			for i := 0; i < m.geom.DayWidth; i++ {
				cells[col*m.geom.DayWidth+i] = ch
			}
		}

		barRune := '█'
		bar := m.geom.BarGeometry(task.StartDate, task.DueDate)
		if targetID, lo, hi, ok := m.drag.DrawSpan(); ok && targetID == task.ID {
			bar = timeline.Bar{Left: lo * m.geom.DayWidth, Width: (hi - lo + 1) * m.geom.DayWidth, Visible: true}
			barRune = '▒'
		} else if targetID, liveStart, liveEnd, ok := m.drag.DragSpan(); ok && targetID == task.ID {
			bar = m.geom.BarGeometry(&liveStart, &liveEnd)
			barRune = '▒'
		}
		if bar.Visible {
			for x := max(0, bar.Left); x < min(chartWidth, bar.Left+bar.Width); x++ {
				cells[x] = barRune
			}
		}
		if todayCol >= 0 && todayCol < chartWidth && cells[todayCol] != barRune {
			cells[todayCol] = '┊'
		}

		// Tasks arrive phase-ordered, so tagging each row keeps phases
		// reading as contiguous groups without extra header rows.
		label := padRight(truncate(string(task.Phase)+" · "+task.Name, ganttLabelWidth-2), ganttLabelWidth)
		chart := truncate(string(cells), maxChart)
		if idx == m.selectedTask {
			lines = append(lines, selStyle.Render(label)+barStyle.Render(chart))
		} else {
			lines = append(lines, gridStyle.Render(label)+barStyle.Render(chart))
		}
	}
	return strings.Join(lines, "\n")
}

// renderPrompt renders the active inline input prompt, if any.
func (m Model) renderPrompt(muted color.Color) string {
	promptStyle := lipgloss.NewStyle().Foreground(muted)
	switch m.mode {
	case modeAddTask:
		return promptStyle.Render("new task: ") + m.input.View()
	case modeAddStep:
		return promptStyle.Render("new step: ") + m.input.View()
	case modeAddChild:
		return promptStyle.Render("new sub-step: ") + m.input.View()
	case modeRenameStep:
		return promptStyle.Render("rename step: ") + m.input.View()
	case modeConfirm:
		return promptStyle.Render(fmt.Sprintf("delete %s %q? y/n", m.pending.kind, m.pending.label))
	default:
		return ""
	}
}

// modeLabel returns a short header label for the active mode.
func (m Model) modeLabel() string {
	switch m.mode {
	case modeAddTask:
		return "add task"
	case modeAddStep, modeAddChild:
		return "add step"
	case modeRenameStep:
		return "rename"
	case modeConfirm:
		return "confirm"
	case modeTaskInfo:
		return "info"
	}
	if m.view == viewGantt {
		return "gantt"
	}
	return "cards"
}

// flattenTree flattens a step tree into display-ordered rows.
func flattenTree(tree domain.StepTree) []stepRow {
	var rows []stepRow
	for _, parent := range tree.Parents {
		rows = append(rows, stepRow{step: parent})
		for _, child := range tree.Children(parent.ID) {
			rows = append(rows, stepRow{step: child, depth: 1})
		}
	}
	return rows
}

func checkmark(complete bool) string {
	if complete {
		return "x"
	}
	return " "
}

func renderProgressBar(progress float64, width int) string {
	if width < 2 {
		width = 2
	}
	filled := clamp(int(progress*float64(width)+0.5), 0, width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatOptionalDate(t *time.Time) string {
	if t == nil {
		return "—"
	}
	return t.Format("2006-01-02")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

func padRight(s string, width int) string {
	if pad := width - len([]rune(s)); pad > 0 {
		return s + strings.Repeat(" ", pad)
	}
	return s
}

func fitLines(content string, height int) string {
	if height <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	if len(lines) <= height {
		return content
	}
	return strings.Join(lines[:height], "\n")
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
