// Package notes applies a parsed NotesPatch to SessionState, routing every
// list mutation through internal/condense so the dedup and cap invariants
// hold unconditionally.
package notes

import (
	"github.com/andrewfreeman/spectator/internal/condense"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// Policy configures the per-field caps. Zero-value Policy uses
// spectator.DefaultListCap / DefaultEpisodeSummaryCap for every field.
type Policy struct {
	MaxGoals, MaxOpenLoops, MaxDecisions, MaxConstraints, MaxMemoryTags int
	MaxEpisodeSummaryChars                                             int
}

// DefaultPolicy returns the default caps (32 per list, 2000 chars
// for the episode summary).
func DefaultPolicy() Policy {
	return Policy{
		MaxGoals:               spectator.DefaultListCap,
		MaxOpenLoops:           spectator.DefaultListCap,
		MaxDecisions:           spectator.DefaultListCap,
		MaxConstraints:         spectator.DefaultListCap,
		MaxMemoryTags:          spectator.DefaultListCap,
		MaxEpisodeSummaryChars: spectator.DefaultEpisodeSummaryCap,
	}
}

// FieldReports names every capped-list FieldReport produced while applying a
// patch, used to populate the condense{scope:state} trace event.
type FieldReports []condense.FieldReport

// Apply mutates a copy of state according to p and returns it along with the
// field-by-field condense reports and the capability actions (if any) that
// the caller (internal/capabilities) should still process.
func Apply(state spectator.SessionState, p *spectator.NotesPatch, policy Policy) (spectator.SessionState, FieldReports, []string) {
	if p == nil {
		return state, nil, nil
	}

	var reports FieldReports

	if p.Goals != nil {
		merged := append(append([]string{}, state.Goals...), *p.Goals...)
		capped, report := condense.CondenseList("goals", merged, nonZero(policy.MaxGoals, spectator.DefaultListCap))
		state.Goals = capped
		reports = append(reports, report)
	}

	if p.AddOpenLoops != nil || p.CloseOpenLoops != nil {
		open := append([]string{}, state.OpenLoops...)
		if p.AddOpenLoops != nil {
			open = append(open, *p.AddOpenLoops...)
		}
		if p.CloseOpenLoops != nil {
			open = removeAll(open, *p.CloseOpenLoops)
		}
		capped, report := condense.CondenseList("open_loops", open, nonZero(policy.MaxOpenLoops, spectator.DefaultListCap))
		state.OpenLoops = capped
		reports = append(reports, report)
	}

	if p.Decisions != nil {
		merged := append(append([]string{}, state.Decisions...), *p.Decisions...)
		capped, report := condense.CondenseList("decisions", merged, nonZero(policy.MaxDecisions, spectator.DefaultListCap))
		state.Decisions = capped
		reports = append(reports, report)
	}

	if p.Constraints != nil {
		merged := append(append([]string{}, state.Constraints...), *p.Constraints...)
		capped, report := condense.CondenseList("constraints", merged, nonZero(policy.MaxConstraints, spectator.DefaultListCap))
		state.Constraints = capped
		reports = append(reports, report)
	}

	if p.MemoryTags != nil {
		merged := append(append([]string{}, state.MemoryTags...), *p.MemoryTags...)
		capped, report := condense.CondenseList("memory_tags", merged, nonZero(policy.MaxMemoryTags, spectator.DefaultListCap))
		state.MemoryTags = capped
		reports = append(reports, report)
	}

	if p.EpisodeSummary != nil {
		cap := nonZero(policy.MaxEpisodeSummaryChars, spectator.DefaultEpisodeSummaryCap)
		state.EpisodeSummary = condense.TruncateText(*p.EpisodeSummary, cap)
	}

	var actions []string
	if p.Actions != nil {
		actions = *p.Actions
	}

	return state, reports, actions
}

func nonZero(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

func removeAll(items []string, toRemove []string) []string {
	remove := make(map[string]struct{}, len(toRemove))
	for _, r := range toRemove {
		remove[r] = struct{}{}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := remove[it]; ok {
			continue
		}
		out = append(out, it)
	}
	return out
}
