// Package builtin implements the six built-in tools the executor exposes:
// fs.read_text, fs.list_dir, fs.write_text, shell.exec, http.get, and
// system.time.
package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/andrewfreeman/spectator/internal/sandbox"
	"github.com/andrewfreeman/spectator/internal/tools"
)

const defaultReadMaxBytes = 20000
const defaultListMaxEntries = 200

// ReadText implements fs.read_text{path, max_bytes?}.
func ReadText(ctx context.Context, args map[string]any, execCtx tools.ExecContext) (map[string]any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("fs.read_text: path is required")
	}
	maxBytes := intArg(args, "max_bytes", defaultReadMaxBytes)

	resolved, err := sandbox.ResolveUnderRoot(execCtx.Settings.SandboxRoot, path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, fmt.Errorf("fs.read_text: %w", err)
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	total := 0
	for total < maxBytes {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			break
		}
	}
	return map[string]any{"text": string(buf[:total])}, nil
}

// ListDir implements fs.list_dir{path?, max_entries?}.
func ListDir(ctx context.Context, args map[string]any, execCtx tools.ExecContext) (map[string]any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	maxEntries := intArg(args, "max_entries", defaultListMaxEntries)

	resolved, err := sandbox.ResolveUnderRoot(execCtx.Settings.SandboxRoot, path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return nil, fmt.Errorf("fs.list_dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) > maxEntries {
		names = names[:maxEntries]
	}
	return map[string]any{"entries": names}, nil
}

// WriteText implements fs.write_text{path, text, overwrite?}.
func WriteText(ctx context.Context, args map[string]any, execCtx tools.ExecContext) (map[string]any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		return nil, fmt.Errorf("fs.write_text: path is required")
	}
	text, _ := args["text"].(string)
	overwrite, _ := args["overwrite"].(bool)

	resolved, err := sandbox.ResolveUnderRoot(execCtx.Settings.SandboxRoot, path)
	if err != nil {
		return nil, err
	}

	if !overwrite {
		if _, err := os.Stat(resolved); err == nil {
			return nil, fmt.Errorf("fs.write_text: refusing to overwrite existing file %q", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("fs.write_text: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(text), 0o644); err != nil {
		return nil, fmt.Errorf("fs.write_text: %w", err)
	}
	return map[string]any{"bytes_written": len(text)}, nil
}

func intArg(args map[string]any, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return fallback
	}
}
