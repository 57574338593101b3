package schedule

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestRunRetentionPruneKeepsMostRecent(t *testing.T) {
	dir := t.TempDir()
	names := []string{"a__rev-1.jsonl", "b__rev-1.jsonl", "c__rev-1.jsonl"}
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("{}\n"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	s := New(dir, 1, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	s.runRetentionPrune()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d files remaining, want 1: %v", len(entries), entries)
	}
	if entries[0].Name() != "c__rev-1.jsonl" {
		t.Errorf("got remaining file %q, want c__rev-1.jsonl", entries[0].Name())
	}
}

func TestRunRetentionPruneNoopWhenUnderLimit(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a__rev-1.jsonl"), []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(dir, 5, nil)
	s.runRetentionPrune()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("got %d files, want 1", len(entries))
	}
}

func TestRunAutopsySweepLogsAnomalyCount(t *testing.T) {
	dir := t.TempDir()
	content := "{\"ts\":1,\"kind\":\"tool_start\",\"data\":{\"id\":\"t1\",\"tool\":\"http.get\"}}\n"
	if err := os.WriteFile(filepath.Join(dir, "a__rev-1.jsonl"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := New(dir, 10, slog.New(slog.NewTextHandler(os.Stderr, nil)))
	s.runAutopsySweep()
}
