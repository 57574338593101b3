package builtin

import (
	"context"
	"testing"
	"time"
)

func TestSystemTimeReturnsUTCLocalAndEpoch(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	handler := SystemTime(func() time.Time { return fixed })

	out, err := handler(context.Background(), map[string]any{}, execCtx(t.TempDir()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["epoch"].(int64) != fixed.Unix() {
		t.Errorf("got epoch %v want %v", out["epoch"], fixed.Unix())
	}
	if out["utc"].(string) != fixed.Format(time.RFC3339) {
		t.Errorf("got utc %v want %v", out["utc"], fixed.Format(time.RFC3339))
	}
}
