package tui

import (
	"strings"
	"testing"
)

func TestNotesRendererEmptyInput(t *testing.T) {
	var r notesRenderer
	if got := r.render("   \n", 80); got != "" {
		t.Fatalf("expected empty output, got %q", got)
	}
}

func TestNotesRendererHoldsMinimumWrap(t *testing.T) {
	var r notesRenderer
	out := r.render("ETA **friday**", 5)
	if out == "" {
		t.Fatal("expected rendered notes")
	}
	if r.wrap != minNotesWrap {
		t.Fatalf("wrap = %d, want %d", r.wrap, minNotesWrap)
	}
}

func TestNotesRendererReusesRendererAtSameWidth(t *testing.T) {
	var r notesRenderer
	r.render("first", 60)
	first := r.renderer
	out := r.render("- second\n- third", 60)
	if r.renderer != first {
		t.Fatal("expected renderer reuse at unchanged width")
	}
	if !strings.Contains(out, "second") {
		t.Fatalf("expected list content in output, got %q", out)
	}
}
