// Package pipeline implements the per-role scheduler: the
// six-step condense -> compose -> request -> tool-round -> notes/sanitize ->
// commit loop that turns one user message and a checkpoint into a sequence
// of RoleResults, the last of which (governor) is the turn's visible answer.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/internal/capabilities"
	"github.com/andrewfreeman/spectator/internal/condense"
	"github.com/andrewfreeman/spectator/internal/markers"
	"github.com/andrewfreeman/spectator/internal/memfeedback"
	"github.com/andrewfreeman/spectator/internal/notes"
	"github.com/andrewfreeman/spectator/internal/retrieval"
	"github.com/andrewfreeman/spectator/internal/sanitize"
	"github.com/andrewfreeman/spectator/internal/telemetry"
	"github.com/andrewfreeman/spectator/internal/tools"
	"github.com/andrewfreeman/spectator/internal/trace"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

// governorRole is the only role permitted a tool round or a notes patch,
// by convention.
const governorRole = "governor"

// Config wires the shared collaborators a Run call needs. Tracer, Executor,
// and Retrieval may all be nil: tracing becomes a no-op, the governor skips
// its tool round, and the retrieval slot is always suppressed.
type Config struct {
	Backend       backend.Backend
	Executor      *tools.Executor
	Retrieval     *retrieval.Adapter
	Tracer        *trace.Writer
	Metrics       *telemetry.Metrics
	MaxToolRounds int
	NotesPolicy   notes.Policy
	Clock         func() time.Time
}

func (c Config) clock() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}

func (c Config) emit(kind trace.Kind, data map[string]any) {
	if c.Tracer == nil {
		return
	}
	ts := float64(c.clock().UnixNano()) / 1e9
	_ = c.Tracer.Emit(ts, kind, data)
}

// Run executes every role in roles against cp in order, threading each
// role's committed text forward as the next role's upstream context, and
// returns the governor's sanitized text as finalText.
func Run(ctx context.Context, cp *spectator.Checkpoint, userText string, roles []RoleSpec, cfg Config) (finalText string, results []RoleResult, err error) {
	upstreamTexts := map[string]string{}
	var upstreamOrder []string

	for _, role := range roles {
		condensedTexts, changed := condense.CondenseUpstream(
			upstreamTexts, upstreamOrder,
			condense.DefaultMaxUpstreamCharsPerRole, condense.DefaultMaxUpstreamTotalChars,
		)
		var lastReport *condense.FieldReport
		if changed {
			cfg.emit(trace.KindCondense, map[string]any{"scope": "upstream", "role": role.Name})
		}
		upstreamTexts = condensedTexts

		prompt, retrieved := composePrompt(ctx, role, cp.State, cp.RecentMessages, upstreamTexts, upstreamOrder, userText, cfg, lastReport)
		if retrieved {
			cfg.emit(trace.KindRetrieval, map[string]any{"role": role.Name})
		}

		params := role.Params
		params.Role = role.Name
		rawText, err := requestCompletion(ctx, role.Name, prompt, params, cfg)
		if err != nil {
			return finalText, results, fmt.Errorf("pipeline: role %q completion: %w", role.Name, err)
		}

		visibleText := rawText
		var notesOutcome *NotesOutcome

		if role.Name == governorRole {
			visibleText = runGovernorToolRound(ctx, prompt, visibleText, cp, cfg)
		}

		visibleText, patch := markers.ParseNotes(visibleText)
		if role.Name == governorRole {
			if patch != nil {
				newState, reports, actions := notes.Apply(cp.State, patch, cfg.NotesPolicy)
				cp.State = newState
				for _, r := range reports {
					cfg.emit(trace.KindCondense, map[string]any{"scope": "state", "field": r.Field, "input": r.InputCount, "output": r.OutputCount, "removed": r.Removed})
				}
				cfg.emit(trace.KindNotesPatch, map[string]any{"role": role.Name})
				if len(actions) > 0 {
					capSet := capabilities.Set{Granted: cp.State.CapabilityGranted, Pending: cp.State.CapabilityPending}
					result := capabilities.Apply(capSet, actions)
					cp.State.CapabilityGranted = result.After.Granted
					cp.State.CapabilityPending = result.After.Pending
					cfg.emit(trace.KindActions, map[string]any{"applied": result.Applied, "ignored": result.Ignored})
				}
				notesOutcome = &NotesOutcome{Applied: true}
			}
		} else if patch != nil {
			cfg.emit(trace.KindNotesIgnored, map[string]any{"role": role.Name})
			notesOutcome = &NotesOutcome{Ignored: true}
		}

		sanitized := sanitize.Sanitize(visibleText)
		if len(sanitized.Removed) > 0 {
			cfg.emit(trace.KindSanitize, map[string]any{"role": role.Name, "removed": sanitized.Removed})
		}
		if sanitized.Empty {
			cfg.emit(trace.KindSanitizeWarning, map[string]any{"role": role.Name})
		}
		cfg.emit(trace.KindVisibleResponse, map[string]any{"role": role.Name, "visible_response": sanitized.Text, "chars": len(sanitized.Text)})

		results = append(results, RoleResult{Role: role.Name, Text: sanitized.Text, Notes: notesOutcome})
		upstreamTexts[role.Name] = sanitized.Text
		upstreamOrder = append(upstreamOrder, role.Name)
		finalText = sanitized.Text
	}

	return finalText, results, nil
}

func composePrompt(ctx context.Context, role RoleSpec, state spectator.SessionState, history []spectator.Message, upstreamTexts map[string]string, upstreamOrder []string, userText string, cfg Config, lastReport *condense.FieldReport) (string, bool) {
	var b strings.Builder
	b.WriteString(role.SystemPrompt)
	b.WriteString("\n\n")

	b.WriteString("STATE:\n")
	b.WriteString(formatState(state))
	b.WriteString("\n\n")

	if role.Telemetry == TelemetryBasic {
		b.WriteString(fmt.Sprintf("TELEMETRY:\nupstream_roles=%d\n\n", len(upstreamOrder)))
	}

	retrieved := false
	if role.MemoryFeedback == MemoryFeedbackBasic {
		pressure := memfeedback.Compute(state, spectator.DefaultListCap, condense.DefaultMaxUpstreamTotalChars, upstreamValues(upstreamTexts, upstreamOrder), lastReport)
		b.WriteString(memfeedback.Format(pressure))
		b.WriteString("\n\n")
	}

	if role.WantsRetrieval && cfg.Retrieval != nil {
		if block, ok := cfg.Retrieval.Format(ctx, userText, 5); ok {
			b.WriteString(block)
			b.WriteString("\n\n")
			retrieved = true
		}
	}

	b.WriteString("HISTORY_JSON:\n")
	b.WriteString(FrameHistory(history))
	b.WriteString("\n\n")

	if upstream := condense.JoinUpstream(upstreamTexts, upstreamOrder); upstream != "" {
		b.WriteString("UPSTREAM:\n")
		b.WriteString(upstream)
		b.WriteString("\n\n")
	}

	b.WriteString("USER:\n")
	b.WriteString(userText)

	return b.String(), retrieved
}

func upstreamValues(texts map[string]string, order []string) []string {
	out := make([]string, 0, len(order))
	for _, role := range order {
		if t, ok := texts[role]; ok {
			out = append(out, t)
		}
	}
	return out
}

func formatState(s spectator.SessionState) string {
	return fmt.Sprintf(
		"goals=%v open_loops=%v decisions=%v constraints=%v memory_tags=%v episode_summary=%q capabilities_granted=%v capabilities_pending=%v",
		s.Goals, s.OpenLoops, s.Decisions, s.Constraints, s.MemoryTags, s.EpisodeSummary, s.CapabilityGranted, s.CapabilityPending,
	)
}

func requestCompletion(ctx context.Context, roleName, prompt string, params backend.Params, cfg Config) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.role."+roleName)
	defer span.End()

	cfg.emit(trace.KindLLMReq, map[string]any{"role": roleName, "prompt_chars": len(prompt)})

	if params.Stream {
		userCallback := params.StreamCallback
		params.StreamCallback = func(delta string) {
			cfg.emit(trace.KindLLMStream, map[string]any{"role": roleName, "delta_chars": len(delta)})
			if userCallback != nil {
				userCallback(delta)
			}
		}
	}

	text, err := cfg.Backend.Complete(ctx, prompt, params)
	if err != nil {
		return "", err
	}
	cfg.emit(trace.KindLLMDone, map[string]any{"role": roleName, "response_chars": len(text)})
	return text, nil
}

// runGovernorToolRound implements step 4 of the pipeline: at most one round of
// tool calls, after which any further tool-call block in the follow-up
// response is parsed only to be reported as ignored, never executed.
func runGovernorToolRound(ctx context.Context, prompt, rawText string, cp *spectator.Checkpoint, cfg Config) string {
	if cfg.Executor == nil || cfg.MaxToolRounds < 1 {
		return rawText
	}

	parsed := markers.ParseToolCalls(rawText, nil)
	for _, w := range parsed.Warnings {
		cfg.emit(trace.KindToolCallsParseWarning, map[string]any{"reason": w.Reason})
	}
	if parsed.Coerced {
		cfg.emit(trace.KindToolCallsCoerced, map[string]any{"from": parsed.CoercedFrom})
	}
	if len(parsed.Calls) == 0 {
		return parsed.VisibleText
	}

	cfg.emit(trace.KindToolPlan, map[string]any{"count": len(parsed.Calls)})

	results := make([]spectator.ToolResult, 0, len(parsed.Calls))
	for _, call := range parsed.Calls {
		cfg.emit(trace.KindToolStart, map[string]any{"id": call.ID, "tool": call.Tool})
		toolCtx, span := telemetry.StartSpan(ctx, "pipeline.tool."+call.Tool)
		result, duration := cfg.Executor.Execute(toolCtx, call, &cp.State)
		span.End()
		cfg.emit(trace.KindToolDone, map[string]any{"id": call.ID, "tool": call.Tool, "ok": result.OK, "duration_ms": duration.Milliseconds()})
		if cfg.Metrics != nil {
			outcome := "ok"
			if !result.OK {
				outcome = "error"
			}
			cfg.Metrics.RecordToolCall(call.Tool, outcome, duration.Seconds())
		}
		results = append(results, result)
	}

	block, truncatedTools := tools.FrameToolResults(results)
	if len(truncatedTools) > 0 {
		cfg.emit(trace.KindToolResultTruncated, map[string]any{"tools": truncatedTools})
	}

	followupPrompt := prompt + "\n\n" + block
	followupText, err := requestCompletion(ctx, governorRole, followupPrompt, backend.Params{Role: governorRole}, cfg)
	if err != nil {
		return parsed.VisibleText
	}

	// A second tool-call block is parsed only to strip it and report it as
	// ignored; at most one tool round ever executes.
	second := markers.ParseToolCalls(followupText, nil)
	if len(second.Calls) > 0 {
		cfg.emit(trace.KindToolPlan, map[string]any{"count": len(second.Calls), "ignored": true})
	}
	return second.VisibleText
}
