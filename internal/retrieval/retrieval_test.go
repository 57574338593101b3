package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeStore struct {
	hits []Hit
	err  error
}

func (f fakeStore) Retrieve(ctx context.Context, query string, k int) ([]Hit, error) {
	return f.hits, f.err
}

func TestFormatRendersHits(t *testing.T) {
	adapter := NewAdapter(fakeStore{hits: []Hit{{Source: "doc1", Text: "relevant passage", Score: 0.91}}})
	block, ok := adapter.Format(context.Background(), "query", 3)
	if !ok {
		t.Fatal("expected a formatted block")
	}
	if !strings.HasPrefix(block, "=== RETRIEVAL ===") || !strings.HasSuffix(block, "=== END RETRIEVAL ===") {
		t.Errorf("missing markers: %q", block)
	}
	if !strings.Contains(block, "relevant passage") {
		t.Errorf("missing hit text: %q", block)
	}
}

func TestFormatReturnsFalseOnError(t *testing.T) {
	adapter := NewAdapter(fakeStore{err: errors.New("boom")})
	if _, ok := adapter.Format(context.Background(), "query", 3); ok {
		t.Fatal("expected error to suppress the retrieval slot")
	}
}

func TestFormatReturnsFalseWithNoHits(t *testing.T) {
	adapter := NewAdapter(fakeStore{})
	if _, ok := adapter.Format(context.Background(), "query", 3); ok {
		t.Fatal("expected no hits to suppress the retrieval slot")
	}
}

func TestFormatReturnsFalseWithNilStore(t *testing.T) {
	adapter := NewAdapter(nil)
	if _, ok := adapter.Format(context.Background(), "query", 3); ok {
		t.Fatal("expected nil store to suppress the retrieval slot")
	}
}
