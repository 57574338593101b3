package builtin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/andrewfreeman/spectator/internal/httpcache"
	"github.com/andrewfreeman/spectator/internal/sandbox"
	"github.com/andrewfreeman/spectator/internal/tools"
)

const (
	defaultHTTPTimeoutS = 10
	defaultHTTPMaxBytes = 1 << 20
)

var (
	tagPattern       = regexp.MustCompile(`(?is)<script.*?</script>|<style.*?</style>|<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Fetcher fetches a URL with a byte cap, returning the response status and
// body truncated to maxBytes. Split out so tests can substitute a fake.
type Fetcher func(ctx context.Context, rawURL string, timeout time.Duration, maxBytes int64) (status int, body string, contentType string, err error)

// NewHTTPGet builds the http.get{url, use_cache?} handler backed by cache
// and fetch: validate scheme, check the net capability,
// consult the cache, and on a miss fetch, render text/html as plain text,
// and write back through the cache.
func NewHTTPGet(cache *httpcache.Store, fetch Fetcher) tools.Handler {
	return func(ctx context.Context, args map[string]any, execCtx tools.ExecContext) (map[string]any, error) {
		rawURL, _ := args["url"].(string)
		if rawURL == "" {
			return nil, fmt.Errorf("http.get: url is required")
		}
		useCache := true
		if v, ok := args["use_cache"].(bool); ok {
			useCache = v
		}

		parsed, err := url.Parse(rawURL)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return nil, fmt.Errorf("http.get: unsupported URL scheme in %q", rawURL)
		}

		if !sandbox.AllowsNet(execCtx.Settings.GrantedCaps, parsed.Hostname(), execCtx.Settings.NetAllowlist) {
			return nil, fmt.Errorf("%w: net access to %q", sandbox.ErrCapabilityDenied, parsed.Hostname())
		}

		now := time.Now()
		if useCache && cache != nil {
			if entry, hit := cache.Get(rawURL, now); hit {
				return map[string]any{"status": entry.Status, "text": entry.Text, "cached": true}, nil
			}
		}

		timeoutS := execCtx.Settings.HTTPTimeoutS
		if timeoutS <= 0 {
			timeoutS = defaultHTTPTimeoutS
		}
		maxBytes := execCtx.Settings.HTTPMaxBytes
		if maxBytes <= 0 {
			maxBytes = defaultHTTPMaxBytes
		}

		status, body, contentType, err := fetch(ctx, rawURL, time.Duration(timeoutS)*time.Second, maxBytes)
		if err != nil {
			return nil, fmt.Errorf("http.get: %w", err)
		}

		text := body
		if strings.Contains(contentType, "text/html") {
			text = htmlToPlainText(body)
		}

		if useCache && cache != nil {
			_ = cache.Put(rawURL, status, text, now)
		}

		return map[string]any{"status": status, "text": text, "cached": false}, nil
	}
}

// DefaultFetcher performs a real HTTP GET via net/http, reading at most
// maxBytes of the response body.
func DefaultFetcher(ctx context.Context, rawURL string, timeout time.Duration, maxBytes int64) (int, string, string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, "", "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, "", "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return 0, "", "", err
	}
	return resp.StatusCode, string(body), resp.Header.Get("Content-Type"), nil
}

// htmlToPlainText strips tags and script/style content, then collapses
// whitespace runs into single spaces.
func htmlToPlainText(html string) string {
	stripped := tagPattern.ReplaceAllString(html, " ")
	collapsed := whitespacePattern.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(collapsed)
}
