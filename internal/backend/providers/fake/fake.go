// Package fake implements a scriptable Backend for tests and the `smoke`
// CLI subcommand: responses are queued per-role or globally, with a
// {{TOOL_OUTPUT}} template that replays the first TOOL_RESULTS entry found
// in the prompt.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/andrewfreeman/spectator/internal/backend"
)

const toolResultsMarker = "TOOL_RESULTS:\n"

// Call records one Complete invocation, for test assertions.
type Call struct {
	Prompt string
	Params backend.Params
}

// Backend serves scripted responses: role-specific queues take priority
// over the global queue; an empty queue yields an empty string, matching
// the Python ancestor rather than erroring.
type Backend struct {
	mu            sync.Mutex
	Responses     []string
	RoleResponses map[string][]string
	Calls         []Call
}

// New returns an empty fake backend ready to have responses queued onto it.
func New() *Backend {
	return &Backend{RoleResponses: make(map[string][]string)}
}

// SetResponses replaces the global response queue.
func (b *Backend) SetResponses(responses []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Responses = append([]string{}, responses...)
}

// SetRoleResponses replaces the response queue for role.
func (b *Backend) SetRoleResponses(role string, responses []string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.RoleResponses[role] = append([]string{}, responses...)
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, prompt string, params backend.Params) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.Calls = append(b.Calls, Call{Prompt: prompt, Params: params})

	var response string
	if queue, ok := b.RoleResponses[params.Role]; ok && len(queue) > 0 {
		response, b.RoleResponses[params.Role] = queue[0], queue[1:]
	} else if len(b.Responses) > 0 {
		response, b.Responses = b.Responses[0], b.Responses[1:]
	} else {
		return "", nil
	}

	rendered := renderResponse(response, prompt)
	if params.Stream && params.StreamCallback != nil {
		params.StreamCallback(rendered)
	}
	return rendered, nil
}

func renderResponse(response, prompt string) string {
	if !strings.Contains(response, "{{TOOL_OUTPUT}}") {
		return response
	}
	output := selectToolOutput(extractToolResults(prompt))
	return strings.ReplaceAll(response, "{{TOOL_OUTPUT}}", output)
}

func extractToolResults(prompt string) []map[string]any {
	idx := strings.Index(prompt, toolResultsMarker)
	if idx == -1 {
		return nil
	}
	tail := prompt[idx+len(toolResultsMarker):]

	var results []map[string]any
	for _, line := range strings.Split(tail, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var payload map[string]any
		if err := json.Unmarshal([]byte(line), &payload); err != nil {
			continue
		}
		results = append(results, payload)
	}
	return results
}

func selectToolOutput(results []map[string]any) string {
	if len(results) == 0 {
		return ""
	}
	output, ok := results[0]["output"].(map[string]any)
	if !ok {
		if results[0]["output"] == nil {
			return ""
		}
		payload, _ := json.Marshal(results[0]["output"])
		return string(payload)
	}
	if stdout, ok := output["stdout"].(string); ok {
		return strings.TrimSpace(stdout)
	}
	if text, ok := output["text"].(string); ok {
		return strings.TrimSpace(text)
	}
	if entries, ok := output["entries"].([]any); ok {
		parts := make([]string, len(entries))
		for i, e := range entries {
			parts[i] = fmt.Sprintf("%v", e)
		}
		return strings.Join(parts, ", ")
	}
	payload, _ := json.Marshal(output)
	return string(payload)
}
