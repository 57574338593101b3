package builtin

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrewfreeman/spectator/internal/httpcache"
	"github.com/andrewfreeman/spectator/internal/tools"
)

func netExecCtx(root string) tools.ExecContext {
	return tools.ExecContext{Settings: tools.Settings{
		SandboxRoot: root,
		GrantedCaps: []string{"net"},
	}}
}

func fakeFetcher(status int, body, contentType string) Fetcher {
	return func(ctx context.Context, rawURL string, timeout time.Duration, maxBytes int64) (int, string, string, error) {
		return status, body, contentType, nil
	}
}

func TestHTTPGetRejectsUnsupportedScheme(t *testing.T) {
	handler := NewHTTPGet(nil, fakeFetcher(200, "", ""))
	_, err := handler(context.Background(), map[string]any{"url": "ftp://example.com/file"}, netExecCtx(t.TempDir()))
	if err == nil {
		t.Fatal("expected unsupported scheme to be rejected")
	}
}

func TestHTTPGetRejectsWithoutNetCapability(t *testing.T) {
	handler := NewHTTPGet(nil, fakeFetcher(200, "hi", "text/plain"))
	ctx := tools.ExecContext{Settings: tools.Settings{SandboxRoot: t.TempDir()}}
	_, err := handler(context.Background(), map[string]any{"url": "https://example.com"}, ctx)
	if err == nil {
		t.Fatal("expected missing net capability to be rejected")
	}
}

func TestHTTPGetConvertsHTMLToPlainText(t *testing.T) {
	handler := NewHTTPGet(nil, fakeFetcher(200, "<html><body><p>Hello <b>World</b></p></body></html>", "text/html; charset=utf-8"))
	out, err := handler(context.Background(), map[string]any{"url": "https://example.com"}, netExecCtx(t.TempDir()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out["text"].(string); got != "Hello World" {
		t.Errorf("got %q want %q", got, "Hello World")
	}
}

func TestHTTPGetCachesAndServesFromCache(t *testing.T) {
	cache, err := httpcache.Open(filepath.Join(t.TempDir(), "cache.db"), time.Hour)
	if err != nil {
		t.Fatalf("open cache: %v", err)
	}
	defer cache.Close()

	calls := 0
	handler := NewHTTPGet(cache, func(ctx context.Context, rawURL string, timeout time.Duration, maxBytes int64) (int, string, string, error) {
		calls++
		return 200, "plain body", "text/plain", nil
	})

	first, err := handler(context.Background(), map[string]any{"url": "https://example.com/a"}, netExecCtx(t.TempDir()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first["cached"].(bool) {
		t.Error("first call should not be served from cache")
	}

	second, err := handler(context.Background(), map[string]any{"url": "https://example.com/a"}, netExecCtx(t.TempDir()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second["cached"].(bool) {
		t.Error("second call should be served from cache")
	}
	if calls != 1 {
		t.Errorf("expected fetcher to run once, ran %d times", calls)
	}
}

func TestHTTPGetRequiresURL(t *testing.T) {
	handler := NewHTTPGet(nil, fakeFetcher(200, "", ""))
	if _, err := handler(context.Background(), map[string]any{}, netExecCtx(t.TempDir())); err == nil {
		t.Fatal("expected missing url to error")
	}
}
