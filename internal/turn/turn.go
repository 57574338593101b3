// Package turn implements the 9-step turn controller: it
// owns the checkpoint lifecycle (load, mutate, atomically save) and the
// trace file lifecycle (one fresh file per run_id) around a single call into
// internal/pipeline.
package turn

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/internal/checkpoint"
	"github.com/andrewfreeman/spectator/internal/httpcache"
	"github.com/andrewfreeman/spectator/internal/pipeline"
	"github.com/andrewfreeman/spectator/internal/telemetry"
	"github.com/andrewfreeman/spectator/internal/tools"
	"github.com/andrewfreeman/spectator/internal/tools/builtin"
	"github.com/andrewfreeman/spectator/internal/trace"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// safetySuffix is appended to every role's system prompt per pipeline
// step 4, so a backend that happens to leak reasoning is still told not to.
const safetySuffix = "\n\nDon't output chain-of-thought; output only final answer."

// Controller runs turns for a fixed data root, wiring the checkpoint store,
// trace directory, and sandboxed tool executor it owns.
type Controller struct {
	Store       *checkpoint.Store
	DataRoot    string
	Backend     backend.Backend
	PipelineCfg pipeline.Config
	Metrics     *telemetry.Metrics
}

// NewController wires every default collaborator for dataRoot: a checkpoint
// store rooted at <dataRoot>/checkpoints, a trace directory at
// <dataRoot>/traces, and a tool executor rooted at <dataRoot>/sandbox with
// every built-in tool registered. cache may be nil, in which case http.get
// always misses and never writes back. Metrics registers against
// prometheus.NewRegistry() so repeated Controller construction in tests
// never panics on duplicate registration; callers that want turns/tool
// calls scraped process-wide should register against their own
// prometheus.Registerer instead and assign Metrics after construction.
func NewController(dataRoot string, be backend.Backend, cache *httpcache.Store) *Controller {
	store := checkpoint.NewStore(filepath.Join(dataRoot, "checkpoints"))
	reg := tools.NewRegistry()
	builtin.Register(reg, cache)
	executor := tools.NewExecutor(reg, tools.Settings{SandboxRoot: filepath.Join(dataRoot, "sandbox")})
	metrics := telemetry.NewMetrics(prometheus.NewRegistry())

	return &Controller{
		Store:    store,
		DataRoot: dataRoot,
		Backend:  be,
		Metrics:  metrics,
		PipelineCfg: pipeline.Config{
			Backend:       be,
			Executor:      executor,
			Metrics:       metrics,
			MaxToolRounds: 1,
		},
	}
}

// RunTurn runs the nine steps for one session/user-text
// pair, returning the governor's final visible text.
func (c *Controller) RunTurn(ctx context.Context, sessionID, userText string) (outcome string, err error) {
	ctx, span := telemetry.StartSpan(ctx, "turn.run")
	start := time.Now()
	defer func() {
		span.End()
		if c.Metrics != nil {
			result := "ok"
			if err != nil {
				result = "error"
			}
			c.Metrics.RecordTurn(result, time.Since(start).Seconds())
		}
	}()

	cp, loadErr := c.Store.LoadOrCreate(sessionID)
	if loadErr != nil {
		return "", fmt.Errorf("turn: load checkpoint: %w", loadErr)
	}

	cp.RecentMessages = append(cp.RecentMessages, spectator.Message{Role: "user", Text: userText})

	runID := fmt.Sprintf("rev-%d", cp.Revision+1)
	tracesDir := filepath.Join(c.DataRoot, "traces")
	tracer, err := trace.Open(tracesDir, sessionID, runID)
	if err != nil {
		return "", fmt.Errorf("turn: open trace file: %w", err)
	}
	defer tracer.Close()

	cfg := c.PipelineCfg
	cfg.Tracer = tracer

	finalText, _, err := pipeline.Run(ctx, cp, userText, rolesWithSafetySuffix(), cfg)
	if err != nil {
		return "", fmt.Errorf("turn: pipeline run: %w", err)
	}

	cp.RecentMessages = append(cp.RecentMessages, spectator.Message{Role: "assistant", Text: finalText})

	cp.TraceTail = append(cp.TraceTail, trace.FileName(sessionID, runID))
	if len(cp.TraceTail) > spectator.MaxTraceTail {
		cp.TraceTail = cp.TraceTail[len(cp.TraceTail)-spectator.MaxTraceTail:]
	}

	if err := c.Store.Save(cp); err != nil {
		return "", fmt.Errorf("turn: save checkpoint: %w", err)
	}

	return finalText, nil
}

func rolesWithSafetySuffix() []pipeline.RoleSpec {
	roles := pipeline.DefaultRoleSpecs()
	for i := range roles {
		roles[i].SystemPrompt += safetySuffix
	}
	return roles
}
