package tui

import "time"

// FieldConfig controls which optional task fields the card view renders.
type FieldConfig struct {
	ShowAssignee   bool
	ShowDueDate    bool
	ShowNotes      bool
	WeekendShading bool
}

type Option func(*Model)

func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		ShowAssignee:   true,
		ShowDueDate:    true,
		ShowNotes:      false,
		WeekendShading: true,
	}
}

func WithFieldConfig(cfg FieldConfig) Option {
	return func(m *Model) {
		m.fields = cfg
	}
}

// WithDayWidth sets the gantt day column width in terminal cells.
func WithDayWidth(width int) Option {
	return func(m *Model) {
		if width > 0 {
			m.dayWidth = width
		}
	}
}

// WithClock overrides the wall clock used for the today marker and default
// scheduling.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}
