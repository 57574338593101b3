package builtin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/andrewfreeman/spectator/internal/tools"
)

func execCtx(root string) tools.ExecContext {
	return tools.ExecContext{Settings: tools.Settings{SandboxRoot: root}}
}

func TestReadTextReturnsFullContentUnderCap(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "note.txt")
	content := make([]byte, 5000)
	for i := range content {
		content[i] = 'a'
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := ReadText(context.Background(), map[string]any{"path": "note.txt", "max_bytes": 20000}, execCtx(root))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := out["text"].(string)
	if len(text) != len(content) {
		t.Fatalf("got %d bytes, want %d", len(text), len(content))
	}
}

func TestReadTextTruncatesAtMaxBytes(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "note.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := ReadText(context.Background(), map[string]any{"path": "note.txt", "max_bytes": 4}, execCtx(root))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out["text"].(string); got != "0123" {
		t.Errorf("got %q want %q", got, "0123")
	}
}

func TestReadTextRequiresPath(t *testing.T) {
	if _, err := ReadText(context.Background(), map[string]any{}, execCtx(t.TempDir())); err == nil {
		t.Fatal("expected missing path to error")
	}
}

func TestListDirSortsAndCaps(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt", "c.txt"} {
		if err := os.WriteFile(filepath.Join(root, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	out, err := ListDir(context.Background(), map[string]any{"max_entries": 2}, execCtx(root))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	entries := out["entries"].([]string)
	if len(entries) != 2 || entries[0] != "a.txt" || entries[1] != "b.txt" {
		t.Errorf("got %v, want sorted-and-capped [a.txt b.txt]", entries)
	}
}

func TestWriteTextRefusesOverwriteByDefault(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "existing.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := WriteText(context.Background(), map[string]any{"path": "existing.txt", "text": "new"}, execCtx(root))
	if err == nil {
		t.Fatal("expected overwrite to be refused")
	}
}

func TestWriteTextOverwritesWhenRequested(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "existing.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := WriteText(context.Background(), map[string]any{"path": "existing.txt", "text": "new", "overwrite": true}, execCtx(root))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Errorf("got %q want %q", got, "new")
	}
}

func TestWriteTextCreatesNestedDirs(t *testing.T) {
	root := t.TempDir()
	_, err := WriteText(context.Background(), map[string]any{"path": "nested/dir/file.txt", "text": "hi"}, execCtx(root))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "nested", "dir", "file.txt")); err != nil {
		t.Fatalf("expected file to exist: %v", err)
	}
}
