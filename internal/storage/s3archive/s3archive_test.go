package s3archive

import "testing"

func TestObjectKeyUsesForwardSlashes(t *testing.T) {
	key := objectKey("sessions/abc", "id-1", "/data/checkpoints/sess-1.checkpoint.json")
	want := "sessions/abc/id-1-sess-1.checkpoint.json"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}
}

func TestObjectKeyEmptyPrefix(t *testing.T) {
	key := objectKey("", "id-1", "trace.jsonl")
	want := "id-1-trace.jsonl"
	if key != want {
		t.Errorf("got %q, want %q", key, want)
	}
}
