// Package markers implements the marker-delimited sub-protocol parsers for
// tool-call extraction (canonical marker plus loose
// coercion) and notes-patch extraction. Each parser is a small hand-written
// scanner over string indices rather than a general regex grammar, a
// deliberate choice favoring auditability over convenience.
package markers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

const (
	toolCallsOpen  = "<<<TOOL_CALLS_JSON>>>"
	toolCallsClose = "<<<END_TOOL_CALLS_JSON>>>"
	notesOpen      = "<<<NOTES_JSON>>>"
	notesClose     = "<<<END_NOTES_JSON>>>"
)

// AllowedPrefixes is the default tool-name allowlist: fs., shell., http.
var AllowedPrefixes = []string{"fs.", "shell.", "http."}

// ParseWarning describes one rejected or coerced tool-call entry, surfaced
// by the caller as a tool_calls_parse_warning trace event.
type ParseWarning struct {
	Reason string
}

// ToolCallsResult is the outcome of ParseToolCalls.
type ToolCallsResult struct {
	VisibleText string
	Calls       []spectator.ToolCall
	Warnings    []ParseWarning
	Coerced     bool
	CoercedFrom string
}

// ParseToolCalls extracts tool calls from raw model output. It first looks
// for the canonical <<<TOOL_CALLS_JSON>>> marker block; if absent and the
// trimmed text looks like bare JSON, it attempts loose coercion.
func ParseToolCalls(raw string, isAllowed func(tool string) bool) ToolCallsResult {
	if isAllowed == nil {
		isAllowed = DefaultAllowed
	}

	if start := strings.Index(raw, toolCallsOpen); start >= 0 {
		end := strings.Index(raw[start:], toolCallsClose)
		if end < 0 {
			// Unterminated marker: treat as parse failure, leave text as-is.
			return ToolCallsResult{VisibleText: raw, Warnings: []ParseWarning{{Reason: "unterminated tool_calls marker"}}}
		}
		payloadStart := start + len(toolCallsOpen)
		payloadEnd := start + end
		payload := strings.TrimSpace(raw[payloadStart:payloadEnd])
		visible := raw[:start] + raw[start+end+len(toolCallsClose):]

		calls, warnings, ok := parseCanonical(payload, isAllowed)
		if !ok {
			return ToolCallsResult{VisibleText: visible, Warnings: warnings}
		}
		return ToolCallsResult{VisibleText: visible, Calls: calls, Warnings: warnings}
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !(strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")) {
		return ToolCallsResult{VisibleText: raw}
	}

	calls, warnings, ok := parseLoose(trimmed, isAllowed)
	if !ok || len(calls) == 0 {
		return ToolCallsResult{VisibleText: raw, Warnings: warnings}
	}
	return ToolCallsResult{
		VisibleText: raw, // bare JSON that wasn't inside a marker is left as-is for the sanitizer to strip
		Calls:       calls,
		Warnings:    warnings,
		Coerced:     true,
		CoercedFrom: "bare_json",
	}
}

// DefaultAllowed implements the default allowlist predicate: any tool name
// starting with fs., shell., or http.
func DefaultAllowed(tool string) bool {
	for _, prefix := range AllowedPrefixes {
		if strings.HasPrefix(tool, prefix) {
			return true
		}
	}
	return false
}

func parseCanonical(payload string, isAllowed func(string) bool) ([]spectator.ToolCall, []ParseWarning, bool) {
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, []ParseWarning{{Reason: fmt.Sprintf("invalid json: %v", err)}}, false
	}

	var entries []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			entries = append(entries, m)
		}
	case map[string]any:
		entries = append(entries, v)
	default:
		return nil, []ParseWarning{{Reason: "tool_calls payload must be a list or object"}}, false
	}

	var calls []spectator.ToolCall
	var warnings []ParseWarning
	autoN := 0
	for _, entry := range entries {
		tool, _ := entry["tool"].(string)
		if tool == "" {
			warnings = append(warnings, ParseWarning{Reason: "missing tool field"})
			continue
		}
		if !isAllowed(tool) {
			warnings = append(warnings, ParseWarning{Reason: fmt.Sprintf("tool %q not allowed", tool)})
			continue
		}
		args, _ := entry["args"].(map[string]any)
		if args == nil {
			args = map[string]any{}
		}
		id, _ := entry["id"].(string)
		if id == "" {
			autoN++
			id = fmt.Sprintf("auto-%d", autoN)
		}
		calls = append(calls, spectator.ToolCall{ID: id, Tool: tool, Args: args})
	}
	return calls, warnings, true
}

func parseLoose(payload string, isAllowed func(string) bool) ([]spectator.ToolCall, []ParseWarning, bool) {
	var raw any
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, []ParseWarning{{Reason: fmt.Sprintf("invalid json: %v", err)}}, false
	}

	var entries []map[string]any
	switch v := raw.(type) {
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				entries = append(entries, m)
			}
		}
	case map[string]any:
		entries = append(entries, v)
	default:
		return nil, nil, false
	}

	var calls []spectator.ToolCall
	var warnings []ParseWarning
	autoN := 0
	for _, entry := range entries {
		tool, _ := entry["tool"].(string)
		if tool == "" {
			tool, _ = entry["name"].(string)
		}
		if tool == "" {
			warnings = append(warnings, ParseWarning{Reason: "coerced entry missing tool/name"})
			continue
		}
		if !isAllowed(tool) {
			warnings = append(warnings, ParseWarning{Reason: fmt.Sprintf("tool %q not allowed", tool)})
			continue
		}

		args := coerceArgs(entry["args"])
		if args == nil {
			args = coerceArgs(entry["arguments"])
		}
		if args == nil {
			args = map[string]any{}
		}

		id, _ := entry["id"].(string)
		if id == "" {
			autoN++
			id = fmt.Sprintf("auto-%d", autoN)
		}
		calls = append(calls, spectator.ToolCall{ID: id, Tool: tool, Args: args})
	}
	return calls, warnings, true
}

// coerceArgs accepts either a JSON object or a JSON-encoded string of an
// object (the "arguments" field is sometimes a re-escaped string).
func coerceArgs(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		return t
	case string:
		var m map[string]any
		if err := json.Unmarshal([]byte(t), &m); err == nil {
			return m
		}
	}
	return nil
}
