package tools

import (
	"context"
	"time"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// Executor owns a sandbox root and a tool registry. It is the only
// component permitted to mutate tool-specific side effects (filesystem,
// process, HTTP cache).
type Executor struct {
	Registry *Registry
	Settings Settings
}

// NewExecutor returns an Executor rooted at settings.SandboxRoot using reg.
func NewExecutor(reg *Registry, settings Settings) *Executor {
	return &Executor{Registry: reg, Settings: settings}
}

// Execute runs one ToolCall serially (tool calls within
// a role to be processed one at a time) and always returns a ToolResult,
// never an error — failures are captured inside the result.
func (e *Executor) Execute(ctx context.Context, call spectator.ToolCall, state *spectator.SessionState) (spectator.ToolResult, time.Duration) {
	start := time.Now()
	handler, ok := e.Registry.Get(call.Tool)
	if !ok {
		return spectator.ToolResult{ID: call.ID, Tool: call.Tool, OK: false, Error: "unknown tool"}, time.Since(start)
	}

	output, err := handler(ctx, call.Args, ExecContext{State: state, Settings: e.Settings})
	duration := time.Since(start)
	if err != nil {
		return spectator.ToolResult{ID: call.ID, Tool: call.Tool, OK: false, Error: err.Error()}, duration
	}
	return spectator.ToolResult{ID: call.ID, Tool: call.Tool, OK: true, Output: output}, duration
}

// ExecuteSerial runs every call in calls in order, stopping for none of
// them on failure — each call's result is independent, matching the
// tool round's per-call tracing: tool_start, invoke, tool_done.
func (e *Executor) ExecuteSerial(ctx context.Context, calls []spectator.ToolCall, state *spectator.SessionState) []spectator.ToolResult {
	results := make([]spectator.ToolResult, 0, len(calls))
	for _, call := range calls {
		result, _ := e.Execute(ctx, call, state)
		results = append(results, result)
	}
	return results
}
