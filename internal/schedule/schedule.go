// Package schedule runs periodic maintenance jobs — an autopsy sweep over
// recent traces and a retention prune of old ones — on a cron schedule via
// github.com/robfig/cron/v3, the CLI's `schedule` subcommand's
// implementation.
package schedule

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/andrewfreeman/spectator/internal/autopsy"
)

// Scheduler owns a cron runner with two registered jobs: autopsy sweep and
// trace retention pruning.
type Scheduler struct {
	cron      *cron.Cron
	TracesDir string
	Retention int // number of most recent trace files to keep across TracesDir
	Logger    *slog.Logger
}

// New returns a Scheduler rooted at tracesDir, keeping retention most-recent
// trace files and discarding the rest on each prune tick. A nil logger
// defaults to slog.Default().
func New(tracesDir string, retention int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(),
		TracesDir: tracesDir,
		Retention: retention,
		Logger:    logger,
	}
}

// AddAutopsySweep registers a job on spec that runs an autopsy pass over
// every trace file currently in TracesDir, logging a one-line summary per
// trace with anomalies.
func (s *Scheduler) AddAutopsySweep(spec string) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, s.runAutopsySweep)
}

// AddRetentionPrune registers a job on spec that deletes all but the
// Retention most recent trace files in TracesDir, ordered by modification
// time (files with equal modification times are ordered by filename).
func (s *Scheduler) AddRetentionPrune(spec string) (cron.EntryID, error) {
	return s.cron.AddFunc(spec, s.runRetentionPrune)
}

// Start begins running registered jobs in the background.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop blocks until any in-flight job completes, then stops the scheduler.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (s *Scheduler) runAutopsySweep() {
	entries, err := os.ReadDir(s.TracesDir)
	if err != nil {
		s.Logger.Error("autopsy sweep: read dir", "error", err)
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		path := filepath.Join(s.TracesDir, entry.Name())
		report, err := autopsy.AutopsyFromTrace(path, "")
		if err != nil {
			s.Logger.Error("autopsy sweep", "trace", entry.Name(), "error", err)
			continue
		}
		if len(report.Anomalies) > 0 {
			s.Logger.Warn("autopsy sweep found anomalies", "trace", entry.Name(), "count", len(report.Anomalies))
		}
	}
}

func (s *Scheduler) runRetentionPrune() {
	if s.Retention <= 0 {
		return
	}
	entries, err := os.ReadDir(s.TracesDir)
	if err != nil {
		s.Logger.Error("retention prune: read dir", "error", err)
		return
	}

	var names []string
	modTimes := map[string]time.Time{}
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".jsonl" {
			names = append(names, entry.Name())
			if info, err := entry.Info(); err == nil {
				modTimes[entry.Name()] = info.ModTime()
			}
		}
	}
	sort.Strings(names)
	sort.SliceStable(names, func(i, j int) bool { return modTimes[names[i]].Before(modTimes[names[j]]) })
	if len(names) <= s.Retention {
		return
	}

	toDelete := names[:len(names)-s.Retention]
	for _, name := range toDelete {
		path := filepath.Join(s.TracesDir, name)
		if err := os.Remove(path); err != nil {
			s.Logger.Error("retention prune: remove", "trace", name, "error", err)
			continue
		}
		s.Logger.Info("retention prune: removed", "trace", name)
	}
}

// DefaultRetentionSpec is the cron expression the `schedule` CLI subcommand
// defaults to for pruning: once a day at 03:00.
const DefaultRetentionSpec = "0 3 * * *"

// DefaultAutopsySpec is the cron expression the `schedule` CLI subcommand
// defaults to for the sweep: every 15 minutes.
const DefaultAutopsySpec = "*/15 * * * *"
