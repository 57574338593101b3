package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/andrewfreeman/spectator/internal/autopsy"
	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/internal/chunking"
	"github.com/andrewfreeman/spectator/internal/config"
	"github.com/andrewfreeman/spectator/internal/httpcache"
	"github.com/andrewfreeman/spectator/internal/schedule"
	"github.com/andrewfreeman/spectator/internal/telemetry"
	"github.com/andrewfreeman/spectator/internal/turn"
)

func configFlag(cmd *cobra.Command) *string {
	var path string
	cmd.Flags().StringVarP(&path, "config", "c", "", "Path to YAML configuration file")
	return &path
}

func loadController(ctx context.Context, configPath string) (*turn.Controller, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, cfg, err
	}

	be, err := resolveBackend(ctx, cfg)
	if err != nil {
		return nil, cfg, err
	}

	var cache *httpcache.Store
	if cfg.DataRoot != "" {
		if err := os.MkdirAll(cfg.DataRoot, 0o755); err != nil {
			return nil, cfg, fmt.Errorf("run: create data root: %w", err)
		}
		cache, err = httpcache.Open(filepath.Join(cfg.DataRoot, "httpcache.db"), httpcache.DefaultTTL)
		if err != nil {
			return nil, cfg, fmt.Errorf("run: open http cache: %w", err)
		}
	}

	return turn.NewController(cfg.DataRoot, be, cache), cfg, nil
}

// =============================================================================
// run
// =============================================================================

func buildRunCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Run a single turn and print the governor's visible answer",
		Example: `  # Run one turn against the fake backend
  spectator run --session demo "summarize the open loops"`,
		Args: cobra.ExactArgs(1),
	}
	configPath := configFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctrl, _, err := loadController(cmd.Context(), *configPath)
		if err != nil {
			return err
		}
		text, err := ctrl.RunTurn(cmd.Context(), session, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	}
	cmd.Flags().StringVarP(&session, "session", "s", "default", "Session id to load/save the checkpoint under")
	return cmd
}

// =============================================================================
// repl
// =============================================================================

func buildReplCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Run an interactive session, one turn per line of input",
		Long: `repl reads lines from stdin, running one turn per line and printing the
governor's visible answer, until EOF. Empty lines are skipped.`,
	}
	configPath := configFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctrl, _, err := loadController(cmd.Context(), *configPath)
		if err != nil {
			return err
		}
		return runRepl(cmd.Context(), ctrl, session, cmd.InOrStdin(), cmd.OutOrStdout())
	}
	cmd.Flags().StringVarP(&session, "session", "s", "default", "Session id to load/save the checkpoint under")
	return cmd
}

func runRepl(ctx context.Context, ctrl *turn.Controller, session string, in io.Reader, out io.Writer) error {
	width := 80
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	banner := strings.Repeat("-", width)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		text, err := ctrl.RunTurn(ctx, session, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n%s\n", err, banner)
			continue
		}
		fmt.Fprintf(out, "%s\n%s\n", text, banner)
	}
	return scanner.Err()
}

// =============================================================================
// smoke
// =============================================================================

func buildSmokeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke",
		Short: "Run one turn against the fake backend to verify the pipeline end to end",
		Long: `smoke runs the full turn controller (checkpoint, trace, pipeline, sanitize)
against the scripted fake backend, so a clean install can be verified without
any real API key or network access.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			dataRoot, err := os.MkdirTemp("", "spectator-smoke-*")
			if err != nil {
				return fmt.Errorf("smoke: create temp data root: %w", err)
			}
			defer os.RemoveAll(dataRoot)

			be, err := resolveBackend(cmd.Context(), config.Config{
				Backend: "fake",
				FakeRoleResponses: map[string][]string{
					"reflection": {"noted."},
					"planner":    {"plan: check status."},
					"critic":     {"looks fine."},
					"governor":   {"Smoke test turn completed successfully."},
				},
			})
			if err != nil {
				return err
			}

			ctrl := turn.NewController(dataRoot, be, nil)
			text, err := ctrl.RunTurn(cmd.Context(), "smoke", "are you working?")
			if err != nil {
				return fmt.Errorf("smoke: turn failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		},
	}
	return cmd
}

// =============================================================================
// autopsy
// =============================================================================

func buildAutopsyCmd() *cobra.Command {
	var tracePath, checkpointPath string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "autopsy",
		Short: "Analyze a trace file for anomalies",
		Example: `  spectator autopsy --trace ./data/traces/demo__rev-3.jsonl
  spectator autopsy --trace ./data/traces/demo__rev-3.jsonl --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if tracePath == "" {
				return fmt.Errorf("autopsy: --trace is required")
			}
			report, err := autopsy.AutopsyFromTrace(tracePath, checkpointPath)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			fmt.Fprint(cmd.OutOrStdout(), autopsy.RenderMarkdown(report))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tracePath, "trace", "t", "", "Path to a trace JSONL file")
	cmd.Flags().StringVar(&checkpointPath, "checkpoint", "", "Optional path to the matching checkpoint file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON instead of markdown")
	return cmd
}

// =============================================================================
// introspect
// =============================================================================

func buildIntrospectCmd() *cobra.Command {
	var path, strategy string
	var maxChars int
	var doList, doRead, doSummarize bool
	cmd := &cobra.Command{
		Use:   "introspect",
		Short: "Chunk a file the way the retrieval pipeline would, for inspection",
		Long: `introspect splits --path into chunks using the same strategies
internal/chunking offers the rest of the system, then either lists the
chunk index (--list, the default), prints every chunk's full text (--read),
or runs a map-reduce summary over the chunks through the configured
backend (--summarize).`,
	}
	configPath := configFlag(cmd)
	cmd.Flags().StringVar(&path, "path", "", "Path to the file to chunk (required)")
	cmd.Flags().BoolVar(&doList, "list", false, "List the chunk index: id, title, line range, size")
	cmd.Flags().BoolVar(&doRead, "read", false, "Print every chunk's full text")
	cmd.Flags().BoolVar(&doSummarize, "summarize", false, "Summarize every chunk through the backend, then synthesize")
	cmd.Flags().StringVar(&strategy, "strategy", "auto", "Chunking strategy: auto, headings, code, log, fixed")
	cmd.Flags().IntVar(&maxChars, "max-chars", 8000, "Maximum characters per chunk")
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if path == "" {
			return fmt.Errorf("introspect: --path is required")
		}
		if doRead && doSummarize {
			return fmt.Errorf("introspect: --read and --summarize are mutually exclusive")
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("introspect: read %s: %w", path, err)
		}
		chunks, err := chunking.ChunkFile(path, string(data), strategy, maxChars)
		if err != nil {
			return err
		}

		switch {
		case doSummarize:
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			be, err := resolveBackend(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return summarizeChunks(cmd.Context(), cmd.OutOrStdout(), be, chunks)
		case doRead:
			for _, c := range chunks {
				fmt.Fprintf(cmd.OutOrStdout(), "=== %s: %s (lines %d-%d) ===\n%s\n\n", c.ID, c.Title, c.StartLine, c.EndLine, c.Text)
			}
			return nil
		default:
			for _, c := range chunks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tlines %d-%d\t%d chars\n", c.ID, c.Title, c.StartLine, c.EndLine, len(c.Text))
			}
			return nil
		}
	}
	return cmd
}

// summarizeChunks maps a per-chunk summarization prompt through be, then
// reduces the per-chunk summaries into one synthesis with a second call.
// Both the map and the reduce calls run under the same otel tracer the
// turn controller uses (internal/telemetry), rather than a second
// introspection-specific span tree.
func summarizeChunks(ctx context.Context, out io.Writer, be backend.Backend, chunks []chunking.Chunk) error {
	if len(chunks) == 0 {
		fmt.Fprintln(out, "(no chunks)")
		return nil
	}

	summaries := make([]string, 0, len(chunks))
	for _, c := range chunks {
		spanCtx, span := telemetry.StartSpan(ctx, "introspect.map")
		prompt := fmt.Sprintf("Summarize the following chunk (%s, lines %d-%d) in 2-3 sentences:\n\n%s", c.Title, c.StartLine, c.EndLine, c.Text)
		summary, err := be.Complete(spanCtx, prompt, backend.Params{Role: "introspect"})
		span.End()
		if err != nil {
			return fmt.Errorf("introspect: summarize %s: %w", c.ID, err)
		}
		summaries = append(summaries, fmt.Sprintf("[%s] %s", c.Title, strings.TrimSpace(summary)))
	}

	reduceCtx, span := telemetry.StartSpan(ctx, "introspect.reduce")
	defer span.End()
	reducePrompt := "Synthesize one overall summary from these per-section summaries:\n\n" + strings.Join(summaries, "\n")
	final, err := be.Complete(reduceCtx, reducePrompt, backend.Params{Role: "introspect"})
	if err != nil {
		return fmt.Errorf("introspect: reduce: %w", err)
	}

	for _, s := range summaries {
		fmt.Fprintln(out, s)
	}
	fmt.Fprintln(out, "\n=== Summary ===")
	fmt.Fprintln(out, strings.TrimSpace(final))
	return nil
}

// =============================================================================
// schedule
// =============================================================================

func buildScheduleCmd() *cobra.Command {
	var autopsySpec, retentionSpec string
	var retention int
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the background autopsy sweep and trace retention prune",
		Long: `schedule blocks, running a periodic autopsy sweep over every trace file
and a periodic retention prune, until interrupted.`,
	}
	configPath := configFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}

		tracesDir := filepath.Join(cfg.DataRoot, "traces")
		if err := os.MkdirAll(tracesDir, 0o755); err != nil {
			return fmt.Errorf("schedule: create traces dir: %w", err)
		}

		s := schedule.New(tracesDir, retention, slog.Default())
		if _, err := s.AddAutopsySweep(autopsySpec); err != nil {
			return fmt.Errorf("schedule: add autopsy sweep: %w", err)
		}
		if _, err := s.AddRetentionPrune(retentionSpec); err != nil {
			return fmt.Errorf("schedule: add retention prune: %w", err)
		}

		s.Start()
		defer s.Stop()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()
		return nil
	}
	cmd.Flags().StringVar(&autopsySpec, "autopsy-cron", schedule.DefaultAutopsySpec, "Cron expression for the autopsy sweep")
	cmd.Flags().StringVar(&retentionSpec, "retention-cron", schedule.DefaultRetentionSpec, "Cron expression for the retention prune")
	cmd.Flags().IntVar(&retention, "retention-count", 200, "Number of most recent trace files to keep across the traces directory")
	return cmd
}
