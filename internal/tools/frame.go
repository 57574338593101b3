package tools

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// MaxToolResultsChars is the global cap on the serialized TOOL_RESULTS
// block.
const MaxToolResultsChars = 20000

const truncatedMarkerFmt = "... <truncated %d chars>"

// FrameToolResults serializes results as "TOOL_RESULTS:\n<one JSON object
// per line>", truncating output.text/output.stdout fields longest-first
// until the whole block fits MaxToolResultsChars. Returns the block and the
// names of any tools whose output was truncated, for a tool_result_truncated
// trace event.
func FrameToolResults(results []spectator.ToolResult) (string, []string) {
	lines := make([]string, len(results))
	for i, r := range results {
		lines[i] = marshalResultLine(r)
	}

	block := "TOOL_RESULTS:\n" + strings.Join(lines, "\n")
	if len(block) <= MaxToolResultsChars || len(results) == 0 {
		return block, nil
	}

	truncatedTools := map[string]bool{}
	mutable := append([]spectator.ToolResult{}, results...)

	for totalLen(mutable) > MaxToolResultsChars {
		idx, field := longestTruncatableField(mutable)
		if idx < 0 {
			break // nothing left to shrink; give up and return what we have
		}
		truncateField(&mutable[idx], field)
		truncatedTools[mutable[idx].Tool] = true
	}

	for i, r := range mutable {
		lines[i] = marshalResultLine(r)
	}
	block = "TOOL_RESULTS:\n" + strings.Join(lines, "\n")

	names := make([]string, 0, len(truncatedTools))
	for name := range truncatedTools {
		names = append(names, name)
	}
	sort.Strings(names)
	return block, names
}

func marshalResultLine(r spectator.ToolResult) string {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"id":%q,"tool":%q,"ok":false,"error":"marshal failed"}`, r.ID, r.Tool)
	}
	return string(payload)
}

func totalLen(results []spectator.ToolResult) int {
	total := len("TOOL_RESULTS:\n")
	for i, r := range results {
		if i > 0 {
			total++ // newline separator
		}
		total += len(marshalResultLine(r))
	}
	return total
}

// longestTruncatableField finds the result index and field name
// ("text" or "stdout") holding the longest still-truncatable string across
// all results, or (-1, "") if none remain.
func longestTruncatableField(results []spectator.ToolResult) (int, string) {
	bestIdx, bestLen := -1, 0
	bestField := ""
	for i, r := range results {
		for _, field := range []string{"text", "stdout"} {
			s, ok := r.Output[field].(string)
			if !ok || len(s) == 0 || strings.HasPrefix(s, "... <truncated ") {
				continue
			}
			if len(s) > bestLen {
				bestIdx, bestLen, bestField = i, len(s), field
			}
		}
	}
	return bestIdx, bestField
}

// truncateField drops the target field's content to empty and appends the
// "... <truncated N chars>" marker. Collapsing a field in one step (rather
// than iteratively halving it) guarantees the truncation loop in
// FrameToolResults makes strictly monotonic progress and terminates after
// at most one pass per field.
func truncateField(r *spectator.ToolResult, field string) {
	s := r.Output[field].(string)
	r.Output[field] = fmt.Sprintf(truncatedMarkerFmt, len(s))
}
