// Package tools implements the tool registry and executor: a
// name-to-handler map, invocation with (args, execution context), and
// result wrapping into spectator.ToolResult.
package tools

import (
	"context"
	"sync"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// Settings carries the sandbox-scoped configuration a tool handler needs:
// the filesystem root, granted capabilities, and per-tool defaults.
type Settings struct {
	SandboxRoot     string
	GrantedCaps     []string
	NetAllowlist    []string
	ShellTimeoutS   int
	HTTPTimeoutS    int
	HTTPMaxBytes    int64
}

// ExecContext is passed to every tool handler alongside its args.
type ExecContext struct {
	State    *spectator.SessionState
	Settings Settings
}

// Handler executes one tool call and returns its output map, or an error
// describing why it failed. The executor wraps either outcome into a
// ToolResult; handlers never construct ToolResult themselves.
type Handler func(ctx context.Context, args map[string]any, execCtx ExecContext) (map[string]any, error)

// Registry is a thread-safe name-to-Handler map.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Handler)}
}

// Register adds or replaces the handler for name.
func (r *Registry) Register(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = h
}

// Get returns the handler for name, if any.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.tools[name]
	return h, ok
}

// Names returns every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}
