// Package main provides the CLI entry point for the spectator cognitive
// runtime.
//
// spectator wires the turn controller (internal/turn) to a configurable
// backend and runs one-shot or interactive sessions, plus the forensic
// tooling (autopsy, introspect) built on top of a session's trace files.
//
// # Basic Usage
//
// Run a single turn:
//
//	spectator run --session demo "what's the status of the migration?"
//
// Start an interactive session:
//
//	spectator repl --session demo
//
// Analyze a trace file for anomalies:
//
//	spectator autopsy --trace ./data/traces/demo__rev-3.jsonl
//
// # Environment Variables
//
// Configuration can be provided via environment variables; see
// internal/config for the full closed set (DATA_ROOT, SPECTATOR_BACKEND,
// ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY, and the
// LLAMA_SERVER_* family).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/andrewfreeman/spectator/internal/telemetry"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))
	otel.SetTracerProvider(telemetry.NewTracerProvider("spectator"))

	root := buildRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spectator",
		Short: "Run and inspect spectator cognitive-runtime sessions",
		Long: `spectator drives a multi-role LLM pipeline (reflection, planner,
critic, governor) through a turn controller that persists checkpoints and
JSONL traces, and ships the tooling to analyze those traces after the fact.`,
		Version: fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
	}
	cmd.AddCommand(
		buildRunCmd(),
		buildReplCmd(),
		buildSmokeCmd(),
		buildAutopsyCmd(),
		buildIntrospectCmd(),
		buildScheduleCmd(),
	)
	return cmd
}
