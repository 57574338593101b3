package memfeedback

import (
	"strings"
	"testing"

	"github.com/andrewfreeman/spectator/internal/condense"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

func TestComputeFlagsHighFieldsAtThreshold(t *testing.T) {
	state := spectator.NewSessionState()
	state.Goals = []string{"a", "b", "c", "d"}

	p := Compute(state, 5, 4000, nil, nil)
	if p.GoalsRatio != 0.8 {
		t.Errorf("got ratio %v want 0.8", p.GoalsRatio)
	}
	found := false
	for _, f := range p.HighFields {
		if f == "goals_ratio" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected goals_ratio in high_fields, got %v", p.HighFields)
	}
}

func TestComputeTreatsZeroCapWithItemsAsFull(t *testing.T) {
	state := spectator.NewSessionState()
	state.Decisions = []string{"x"}
	p := Compute(state, 0, 4000, nil, nil)
	if p.DecisionsRatio != 1.0 {
		t.Errorf("got ratio %v want 1.0", p.DecisionsRatio)
	}
}

func TestFormatIncludesAllFieldsAndMarkers(t *testing.T) {
	report := &condense.FieldReport{Field: "goals", InputCount: 40, OutputCount: 32, Removed: 8}
	p := Compute(spectator.NewSessionState(), 32, 4000, []string{"hello"}, report)
	out := Format(p)
	if !strings.HasPrefix(out, "=== MEMORY FEEDBACK ===") || !strings.HasSuffix(out, "=== END MEMORY FEEDBACK ===") {
		t.Errorf("missing block markers: %q", out)
	}
	if !strings.Contains(out, "condensed: true") {
		t.Errorf("expected condensed: true, got %q", out)
	}
	if !strings.Contains(out, "field:goals") {
		t.Errorf("expected last_report detail, got %q", out)
	}
}
