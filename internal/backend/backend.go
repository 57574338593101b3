// Package backend defines the LLM completion contract and a
// name-keyed registry of backend implementations.
package backend

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// Params carries the recognized completion parameters. The
// scheduler never couples to a specific backend's chat schema: it always
// speaks in (prompt, Params) and lets the backend render its own messages.
type Params struct {
	Role           string
	Stream         bool
	StreamCallback func(delta string)
	Messages       []spectator.Message
	Temperature    float64
	TopP           float64
	MaxTokens      int
	Seed           int
	Model          string
}

// Backend is the sole contract the scheduler depends on.
type Backend interface {
	Complete(ctx context.Context, prompt string, params Params) (string, error)
}

// MessageCapable is an optional interface a Backend may implement to
// declare it accepts a prebuilt message list with a system-content slot.
type MessageCapable interface {
	SupportsMessages() bool
}

// Registry is a thread-safe name-to-Backend map.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds or replaces the backend under name.
func (r *Registry) Register(name string, b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = b
}

// Get returns the backend registered under name.
func (r *Registry) Get(name string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[name]
	if !ok {
		return nil, fmt.Errorf("backend: unknown backend %q", name)
	}
	return b, nil
}
