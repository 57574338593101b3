package markers

import (
	"encoding/json"
	"strings"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// ParseNotes extracts a <<<NOTES_JSON>>> block. On any type mismatch or
// malformed JSON the entire patch is rejected and the original text is
// returned unchanged.
func ParseNotes(raw string) (visibleText string, patch *spectator.NotesPatch) {
	start := strings.Index(raw, notesOpen)
	if start < 0 {
		return raw, nil
	}
	end := strings.Index(raw[start:], notesClose)
	if end < 0 {
		return raw, nil
	}
	payloadStart := start + len(notesOpen)
	payloadEnd := start + end
	payload := strings.TrimSpace(raw[payloadStart:payloadEnd])
	visible := raw[:start] + raw[start+end+len(notesClose):]

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return raw, nil
	}

	var p spectator.NotesPatch
	for key, value := range fields {
		switch key {
		case "set_goals":
			if !decodeStringList(value, &p.Goals) {
				return raw, nil
			}
		case "add_open_loops":
			if !decodeStringList(value, &p.AddOpenLoops) {
				return raw, nil
			}
		case "close_open_loops":
			if !decodeStringList(value, &p.CloseOpenLoops) {
				return raw, nil
			}
		case "add_decisions":
			if !decodeStringList(value, &p.Decisions) {
				return raw, nil
			}
		case "add_constraints":
			if !decodeStringList(value, &p.Constraints) {
				return raw, nil
			}
		case "add_memory_tags":
			if !decodeStringList(value, &p.MemoryTags) {
				return raw, nil
			}
		case "set_episode_summary":
			var s string
			if err := json.Unmarshal(value, &s); err != nil {
				return raw, nil
			}
			p.EpisodeSummary = &s
		case "actions":
			if !decodeStringList(value, &p.Actions) {
				return raw, nil
			}
		default:
			// Unknown fields are ignored, not rejected.
		}
	}

	return visible, &p
}

// InjectNotes renders a NotesPatch back into a <<<NOTES_JSON>>> block
// embedded in text, the inverse of ParseNotes: the round-trip invariant is
// extract(inject(p, TEXT)) == (TEXT, p).
func InjectNotes(p spectator.NotesPatch, text string) string {
	obj := map[string]any{}
	if p.Goals != nil {
		obj["set_goals"] = *p.Goals
	}
	if p.AddOpenLoops != nil {
		obj["add_open_loops"] = *p.AddOpenLoops
	}
	if p.CloseOpenLoops != nil {
		obj["close_open_loops"] = *p.CloseOpenLoops
	}
	if p.Decisions != nil {
		obj["add_decisions"] = *p.Decisions
	}
	if p.Constraints != nil {
		obj["add_constraints"] = *p.Constraints
	}
	if p.MemoryTags != nil {
		obj["add_memory_tags"] = *p.MemoryTags
	}
	if p.EpisodeSummary != nil {
		obj["set_episode_summary"] = *p.EpisodeSummary
	}
	if p.Actions != nil {
		obj["actions"] = *p.Actions
	}
	data, _ := json.Marshal(obj)
	return text + notesOpen + "\n" + string(data) + "\n" + notesClose
}

func decodeStringList(raw json.RawMessage, dst **[]string) bool {
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		return false
	}
	*dst = &list
	return true
}
