package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Task notes render inside the detail panel, which can get narrow when the
// step list takes most of the row. Below this wrap width glamour output
// degenerates, so the renderer holds the line there.
const minNotesWrap = 24

// notesRenderer styles task notes markdown for the detail panel. The glamour
// renderer is rebuilt lazily whenever the panel wrap width changes.
type notesRenderer struct {
	wrap     int
	renderer *glamour.TermRenderer
}

// render returns ANSI-styled notes wrapped to the panel width. Raw notes come
// back unstyled if glamour fails, so the panel never goes blank.
func (r *notesRenderer) render(notes string, width int) string {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return ""
	}

	wrap := max(width, minNotesWrap)
	if r.renderer == nil || r.wrap != wrap {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(wrap),
			glamour.WithEmoji(),
		)
		if err != nil {
			return notes
		}
		r.renderer = renderer
		r.wrap = wrap
	}

	styled, err := r.renderer.Render(notes)
	if err != nil {
		return notes
	}
	return strings.TrimRight(styled, "\n")
}
