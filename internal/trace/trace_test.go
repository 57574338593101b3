package trace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriterEmitAppendOnly(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "sess-1", "rev-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	if err := w.Emit(1.0, KindLLMReq, map[string]any{"role": "planner"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if err := w.Emit(2.0, KindLLMDone, map[string]any{"role": "planner"}); err != nil {
		t.Fatalf("Emit: %v", err)
	}

	events, err := ReadFile(filepath.Join(dir, FileName("sess-1", "rev-1")))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != KindLLMReq || events[1].Kind != KindLLMDone {
		t.Errorf("unexpected kinds: %v, %v", events[0].Kind, events[1].Kind)
	}
}

func TestWriterClampsNonDecreasingTS(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(dir, "sess-2", "rev-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer w.Close()

	w.Emit(5.0, KindWarning, nil)
	w.Emit(1.0, KindWarning, nil) // earlier wall-clock reading must not go backwards

	events, _ := ReadFile(filepath.Join(dir, FileName("sess-2", "rev-1")))
	if events[1].TS < events[0].TS {
		t.Errorf("ts went backwards: %v then %v", events[0].TS, events[1].TS)
	}
}

func TestReadFileTreatsMalformedLineAsParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.jsonl")
	if err := os.WriteFile(path, []byte("{\"ts\":1,\"kind\":\"warning\",\"data\":{}}\nnot json\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	events, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Kind != "trace_parse_error" {
		t.Errorf("expected trace_parse_error kind, got %v", events[1].Kind)
	}
}
