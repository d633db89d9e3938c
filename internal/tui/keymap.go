package tui

import "charm.land/bubbles/v2/key"

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	switchView key.Binding
	moveUp     key.Binding
	moveDown   key.Binding
	prevTask   key.Binding
	nextTask   key.Binding
	toggleStep key.Binding
	addTask    key.Binding
	addStep    key.Binding
	addChild   key.Binding
	renameStep key.Binding
	deleteStep key.Binding
	deleteTask key.Binding
	stepUp     key.Binding
	stepDown   key.Binding
	taskInfo   key.Binding
	yank       key.Binding

	scheduleToday key.Binding
	barLeft       key.Binding
	barRight      key.Binding
	startEarlier  key.Binding
	startLater    key.Binding
	dueEarlier    key.Binding
	dueLater      key.Binding
	clearDates    key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		switchView: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "cards/gantt")),
		moveUp:     key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "step up")),
		moveDown:   key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "step down")),
		prevTask:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "prev task")),
		nextTask:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next task")),
		toggleStep: key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("space/x", "toggle step")),
		addTask:    key.NewBinding(key.WithKeys("T"), key.WithHelp("T", "new task")),
		addStep:    key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "new step")),
		addChild:   key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new sub-step")),
		renameStep: key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "rename step")),
		deleteStep: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete step")),
		deleteTask: key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete task")),
		stepUp:     key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move step up")),
		stepDown:   key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move step down")),
		taskInfo:   key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		yank:       key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yank summary")),

		scheduleToday: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "schedule today")),
		barLeft:       key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "bar earlier")),
		barRight:      key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "bar later")),
		startEarlier:  key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "start earlier")),
		startLater:    key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "start later")),
		dueEarlier:    key.NewBinding(key.WithKeys("<"), key.WithHelp("<", "due earlier")),
		dueLater:      key.NewBinding(key.WithKeys(">"), key.WithHelp(">", "due later")),
		clearDates:    key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "clear dates")),
	}
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.switchView, k.toggleStep, k.addStep, k.addTask, k.taskInfo, k.yank, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.switchView, k.moveUp, k.moveDown, k.prevTask, k.nextTask, k.taskInfo, k.toggleHelp, k.reload, k.quit},
		{k.toggleStep, k.addStep, k.addChild, k.renameStep, k.stepUp, k.stepDown, k.deleteStep, k.addTask, k.deleteTask, k.yank},
		{k.scheduleToday, k.barLeft, k.barRight, k.startEarlier, k.startLater, k.dueEarlier, k.dueLater, k.clearDates},
	}
}
