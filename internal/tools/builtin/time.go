package builtin

import (
	"context"
	"time"

	"github.com/andrewfreeman/spectator/internal/tools"
)

// SystemTime implements system.time{}: returns UTC and local ISO-8601
// timestamps plus the epoch second count, using the injected clock so tests
// can stub time without wall-clock flakiness.
func SystemTime(clock func() time.Time) tools.Handler {
	return func(ctx context.Context, args map[string]any, execCtx tools.ExecContext) (map[string]any, error) {
		now := clock()
		return map[string]any{
			"utc":   now.UTC().Format(time.RFC3339),
			"local": now.Local().Format(time.RFC3339),
			"epoch": now.Unix(),
		}, nil
	}
}
