// Package memfeedback computes per-field memory pressure ratios and renders
// the "=== MEMORY FEEDBACK ===" prompt slot optionally injected into a turn.
package memfeedback

import (
	"fmt"
	"strings"

	"github.com/andrewfreeman/spectator/internal/condense"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// highFieldThreshold marks a ratio as worth calling out in high_fields.
const highFieldThreshold = 0.8

// Pressure reports how close each capped field is to its limit.
type Pressure struct {
	GoalsRatio       float64
	OpenLoopsRatio   float64
	DecisionsRatio   float64
	ConstraintsRatio float64
	MemoryTagsRatio  float64
	UpstreamRatio    float64
	HighFields       []string
	Condensed        bool
	LastReport       *condense.FieldReport
}

func ratio(current, maximum int) float64 {
	if maximum <= 0 {
		if current > 0 {
			return 1.0
		}
		return 0.0
	}
	return float64(current) / float64(maximum)
}

// Compute derives a Pressure snapshot from the current state, the policy's
// caps, the upstream role texts considered for this turn, and the most
// recent condense report (nil if condensation didn't run or found nothing
// to trim).
func Compute(state spectator.SessionState, maxListLen int, maxUpstreamTotalChars int, upstream []string, report *condense.FieldReport) Pressure {
	upstreamChars := 0
	for _, text := range upstream {
		upstreamChars += len(text)
	}

	fields := map[string]float64{
		"goals_ratio":       ratio(len(state.Goals), maxListLen),
		"open_loops_ratio":  ratio(len(state.OpenLoops), maxListLen),
		"decisions_ratio":   ratio(len(state.Decisions), maxListLen),
		"constraints_ratio": ratio(len(state.Constraints), maxListLen),
		"memory_tags_ratio": ratio(len(state.MemoryTags), maxListLen),
		"upstream_ratio":    ratio(upstreamChars, maxUpstreamTotalChars),
	}

	var high []string
	for _, name := range []string{"goals_ratio", "open_loops_ratio", "decisions_ratio", "constraints_ratio", "memory_tags_ratio", "upstream_ratio"} {
		if fields[name] >= highFieldThreshold {
			high = append(high, name)
		}
	}

	condensed := false
	if report != nil {
		condensed = report.Removed > 0
	}

	return Pressure{
		GoalsRatio:       fields["goals_ratio"],
		OpenLoopsRatio:   fields["open_loops_ratio"],
		DecisionsRatio:   fields["decisions_ratio"],
		ConstraintsRatio: fields["constraints_ratio"],
		MemoryTagsRatio:  fields["memory_tags_ratio"],
		UpstreamRatio:    fields["upstream_ratio"],
		HighFields:       high,
		Condensed:        condensed,
		LastReport:       report,
	}
}

// Format renders the MEMORY FEEDBACK prompt slot.
func Format(p Pressure) string {
	lastReport := "none"
	if p.LastReport != nil {
		lastReport = fmt.Sprintf("{field:%s input:%d output:%d removed:%d}",
			p.LastReport.Field, p.LastReport.InputCount, p.LastReport.OutputCount, p.LastReport.Removed)
	}

	lines := []string{
		"=== MEMORY FEEDBACK ===",
		fmt.Sprintf("goals_ratio: %.2f", p.GoalsRatio),
		fmt.Sprintf("open_loops_ratio: %.2f", p.OpenLoopsRatio),
		fmt.Sprintf("decisions_ratio: %.2f", p.DecisionsRatio),
		fmt.Sprintf("constraints_ratio: %.2f", p.ConstraintsRatio),
		fmt.Sprintf("memory_tags_ratio: %.2f", p.MemoryTagsRatio),
		fmt.Sprintf("upstream_ratio: %.2f", p.UpstreamRatio),
		fmt.Sprintf("high_fields: %v", p.HighFields),
		fmt.Sprintf("condensed: %t", p.Condensed),
		fmt.Sprintf("last_report: %s", lastReport),
		"=== END MEMORY FEEDBACK ===",
	}
	return strings.Join(lines, "\n")
}
