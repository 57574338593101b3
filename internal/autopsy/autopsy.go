// Package autopsy implements the post-hoc trace anomaly analyzer,
// grounded on original_source/analysis/autopsy.py: it
// walks a run's JSONL trace (and, if present, the checkpoint it produced)
// looking for llm_req/llm_done mismatches, unpaired tool_start/tool_done
// calls, tool failures, bare tool-call JSON leaking into visible text,
// sanitize warnings, and truncated tool results.
package autopsy

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/andrewfreeman/spectator/internal/trace"
)

// Severity is one of the two levels the Python ancestor recognizes.
type Severity string

const (
	SeverityWarn Severity = "warn"
	SeverityHigh Severity = "high"
)

// Anomaly is one finding surfaced by AutopsyFromTrace.
type Anomaly struct {
	Code      string         `json:"code"`
	Severity  Severity       `json:"severity"`
	Category  string         `json:"category"`
	Role      string         `json:"role,omitempty"`
	ToolID    string         `json:"tool_id,omitempty"`
	Tool      string         `json:"tool,omitempty"`
	Message   string         `json:"message"`
	Detail    map[string]any `json:"detail,omitempty"`
}

// Report is the full analysis result for one trace file.
type Report struct {
	TracePath       string            `json:"trace_path"`
	EventCount      int               `json:"event_count"`
	Anomalies       []Anomaly         `json:"anomalies"`
	CauseCategories map[string]int    `json:"cause_categories"`
	Recommendations []string          `json:"recommendations"`
}

// categoryFor mirrors the Python ancestor's _categorize_anomaly table: every
// anomaly code maps to a fixed category name used for aggregation.
var categoryFor = map[string]string{
	"trace_parse_error":       "trace_integrity",
	"llm_req_done_mismatch":   "llm_lifecycle",
	"tool_missing_done":       "tool_lifecycle",
	"tool_failed":             "tool_execution",
	"visible_tool_json_leak":  "output_hygiene",
	"sanitize_warning":        "output_hygiene",
	"tool_calls_parse_warning": "tool_lifecycle",
	"tool_results_truncated":  "tool_execution",
}

// recommendationFor mirrors the Python ancestor's canned per-code text.
var recommendationFor = map[string]string{
	"trace_parse_error":       "Investigate the writer that produced malformed JSONL lines; a crash mid-write is the usual cause.",
	"llm_req_done_mismatch":   "Check for backend timeouts or panics between request and completion; an unmatched llm_req means the corresponding llm_done never landed.",
	"tool_missing_done":       "A tool_start has no matching tool_done; the executor may have crashed or hung mid-call.",
	"tool_failed":             "Review the failing tool's error output; repeated failures for the same tool are worth a standalone fix.",
	"visible_tool_json_leak":  "A tool-call block leaked into visible text without being parsed; check the marker regex against the raw response.",
	"sanitize_warning":        "The sanitizer emptied a role's entire response; inspect the raw text for a runaway disclaimer or refusal.",
	"tool_calls_parse_warning": "The tool-call parser had to coerce or reject part of a response; check the backend's tool-call formatting.",
	"tool_results_truncated":  "Tool output exceeded the per-result size cap and was truncated; consider a narrower query or a summarizing tool.",
}

// AutopsyFromTrace reads tracePath and returns a Report. checkpointPath may
// be empty; when given, a missing or unreadable checkpoint is not an error,
// matching the Python ancestor's best-effort checkpoint load.
func AutopsyFromTrace(tracePath, checkpointPath string) (Report, error) {
	events, err := trace.ReadFile(tracePath)
	if err != nil {
		return Report{}, fmt.Errorf("autopsy: read trace: %w", err)
	}
	_ = loadCheckpoint(checkpointPath)

	var anomalies []Anomaly

	type openReq struct {
		role string
	}
	var openStages []openReq

	type toolEntry struct {
		id      string
		tool    string
		started bool
		done    bool
	}
	toolEntries := map[string]*toolEntry{}
	var toolOrder []string

	for _, ev := range events {
		role, _ := ev.Data["role"].(string)

		switch ev.Kind {
		case "trace_parse_error":
			line, _ := ev.Data["line"]
			anomalies = append(anomalies, Anomaly{
				Code:     "trace_parse_error",
				Severity: SeverityHigh,
				Category: categoryFor["trace_parse_error"],
				Message:  fmt.Sprintf("malformed trace line %v", line),
				Detail:   ev.Data,
			})
		case trace.KindLLMReq:
			openStages = append(openStages, openReq{role: role})
		case trace.KindLLMDone:
			if len(openStages) == 0 {
				anomalies = append(anomalies, Anomaly{
					Code:     "llm_req_done_mismatch",
					Severity: SeverityHigh,
					Category: categoryFor["llm_req_done_mismatch"],
					Role:     role,
					Message:  fmt.Sprintf("llm_done for role %q has no matching llm_req", role),
				})
				continue
			}
			openStages = openStages[:len(openStages)-1]
		case trace.KindToolStart:
			id, _ := ev.Data["id"].(string)
			tool, _ := ev.Data["tool"].(string)
			toolEntries[id] = &toolEntry{id: id, tool: tool, started: true}
			toolOrder = append(toolOrder, id)
		case trace.KindToolDone:
			id, _ := ev.Data["id"].(string)
			entry, ok := toolEntries[id]
			if !ok {
				entry = &toolEntry{id: id}
				toolEntries[id] = entry
				toolOrder = append(toolOrder, id)
			}
			entry.done = true
			if ok2, _ := ev.Data["ok"].(bool); !ok2 {
				anomalies = append(anomalies, Anomaly{
					Code:     "tool_failed",
					Severity: SeverityWarn,
					Category: categoryFor["tool_failed"],
					ToolID:   id,
					Tool:     entry.tool,
					Message:  fmt.Sprintf("tool %q (id %s) reported failure", entry.tool, id),
					Detail:   ev.Data,
				})
			}
		case trace.KindToolResultTruncated:
			anomalies = append(anomalies, Anomaly{
				Code:     "tool_results_truncated",
				Severity: SeverityWarn,
				Category: categoryFor["tool_results_truncated"],
				Role:     role,
				Message:  "one or more tool results were truncated before being sent back to the model",
				Detail:   ev.Data,
			})
		case trace.KindSanitizeWarning:
			anomalies = append(anomalies, Anomaly{
				Code:     "sanitize_warning",
				Severity: SeverityWarn,
				Category: categoryFor["sanitize_warning"],
				Role:     role,
				Message:  fmt.Sprintf("role %q's response was emptied by sanitization", role),
			})
		case trace.KindToolCallsParseWarning:
			anomalies = append(anomalies, Anomaly{
				Code:     "tool_calls_parse_warning",
				Severity: SeverityWarn,
				Category: categoryFor["tool_calls_parse_warning"],
				Role:     role,
				Message:  "tool-call block failed to parse cleanly",
				Detail:   ev.Data,
			})
		case trace.KindVisibleResponse:
			if text, ok := ev.Data["visible_response"].(string); ok && bareToolJSON(text) {
				anomalies = append(anomalies, Anomaly{
					Code:     "visible_tool_json_leak",
					Severity: SeverityHigh,
					Category: categoryFor["visible_tool_json_leak"],
					Role:     role,
					Message:  fmt.Sprintf("role %q's visible text looks like an unparsed tool-call block", role),
				})
			}
		}
	}

	for _, role := range openStages {
		anomalies = append(anomalies, Anomaly{
			Code:     "llm_req_done_mismatch",
			Severity: SeverityHigh,
			Category: categoryFor["llm_req_done_mismatch"],
			Role:     role.role,
			Message:  fmt.Sprintf("llm_req for role %q has no matching llm_done", role.role),
		})
	}

	for _, id := range toolOrder {
		entry := toolEntries[id]
		if entry.started && !entry.done {
			anomalies = append(anomalies, Anomaly{
				Code:     "tool_missing_done",
				Severity: SeverityHigh,
				Category: categoryFor["tool_missing_done"],
				ToolID:   entry.id,
				Tool:     entry.tool,
				Message:  fmt.Sprintf("tool %q (id %s) started but never reported done", entry.tool, entry.id),
			})
		}
	}

	anomalies = dedupe(anomalies)

	return Report{
		TracePath:       tracePath,
		EventCount:      len(events),
		Anomalies:       anomalies,
		CauseCategories: causeCategories(anomalies),
		Recommendations: recommendations(anomalies),
	}, nil
}

func loadCheckpoint(path string) map[string]any {
	if path == "" {
		return nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil
	}
	return out
}

// bareToolJSON matches the Python ancestor's heuristic: visible text that is
// (after trimming) a JSON object or array containing a "tool" key, meaning a
// tool-call block escaped the marker parser instead of being stripped.
func bareToolJSON(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if !(strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		return false
	}
	var generic any
	if err := json.Unmarshal([]byte(trimmed), &generic); err != nil {
		return false
	}
	switch v := generic.(type) {
	case map[string]any:
		_, hasTool := v["tool"]
		return hasTool
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				if _, hasTool := m["tool"]; hasTool {
					return true
				}
			}
		}
	}
	return false
}

// dedupe drops exact (code, role, tool_id) repeats, keeping the first
// occurrence, matching the Python ancestor's _dedupe.
func dedupe(anomalies []Anomaly) []Anomaly {
	seen := map[string]bool{}
	var out []Anomaly
	for _, a := range anomalies {
		key := strings.Join([]string{a.Code, a.Role, a.ToolID}, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

func causeCategories(anomalies []Anomaly) map[string]int {
	out := map[string]int{}
	for _, a := range anomalies {
		out[a.Category]++
	}
	return out
}

func recommendations(anomalies []Anomaly) []string {
	seen := map[string]bool{}
	var out []string
	for _, a := range anomalies {
		rec, ok := recommendationFor[a.Code]
		if !ok || seen[rec] {
			continue
		}
		seen[rec] = true
		out = append(out, rec)
	}
	sort.Strings(out)
	return out
}

// RenderMarkdown renders a Report as a human-readable markdown document,
// matching the Python ancestor's render_autopsy_markdown layout: a summary
// line, a table of anomalies, a cause-category breakdown, and a
// recommendations list.
func RenderMarkdown(r Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Autopsy report: %s\n\n", r.TracePath)
	fmt.Fprintf(&b, "%d events analyzed, %d anomalies found.\n\n", r.EventCount, len(r.Anomalies))

	if len(r.Anomalies) == 0 {
		b.WriteString("No anomalies found.\n")
		return b.String()
	}

	b.WriteString("## Anomalies\n\n")
	b.WriteString("| Severity | Code | Role | Tool | Message |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, a := range r.Anomalies {
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", a.Severity, a.Code, a.Role, a.Tool, a.Message)
	}
	b.WriteString("\n## Cause categories\n\n")

	categories := make([]string, 0, len(r.CauseCategories))
	for c := range r.CauseCategories {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	for _, c := range categories {
		fmt.Fprintf(&b, "- %s: %d\n", c, r.CauseCategories[c])
	}

	if len(r.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, rec := range r.Recommendations {
			fmt.Fprintf(&b, "- %s\n", rec)
		}
	}

	return b.String()
}
