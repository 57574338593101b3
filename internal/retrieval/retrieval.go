// Package retrieval adapts an external (query, k) -> hits vector store into
// the "=== RETRIEVAL ===" prompt slot. The store itself is out of scope;
// only the adapter contract is specified here.
package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Hit is one retrieved passage.
type Hit struct {
	Source string
	Text   string
	Score  float64
}

// Store is the only contract this package depends on.
type Store interface {
	Retrieve(ctx context.Context, query string, k int) ([]Hit, error)
}

// Adapter formats Store results into the fixed retrieval prompt slot.
type Adapter struct {
	Store Store
}

// NewAdapter wraps store.
func NewAdapter(store Store) *Adapter {
	return &Adapter{Store: store}
}

// Format runs Retrieve(query, k) and renders a "=== RETRIEVAL === ... ===
// END RETRIEVAL ===" block, or ("", false) if the adapter has no store, the
// call errors, or no hits come back — retrieval failures degrade silently
// since it is an optional prompt slot, never a turn-aborting error.
func (a *Adapter) Format(ctx context.Context, query string, k int) (string, bool) {
	if a == nil || a.Store == nil {
		return "", false
	}
	hits, err := a.Store.Retrieve(ctx, query, k)
	if err != nil || len(hits) == 0 {
		return "", false
	}

	lines := []string{"=== RETRIEVAL ==="}
	for _, h := range hits {
		lines = append(lines, fmt.Sprintf("[%s score=%.3f] %s", h.Source, h.Score, h.Text))
	}
	lines = append(lines, "=== END RETRIEVAL ===")
	return strings.Join(lines, "\n"), true
}
