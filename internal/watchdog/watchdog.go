// Package watchdog orchestrates a single health-check run: it loads
// persisted state, runs each monitor in order, and writes the updated state
// back before reporting.
package watchdog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hostwatch/hostwatch/internal/issue"
	"github.com/hostwatch/hostwatch/internal/monitor"
	"github.com/hostwatch/hostwatch/internal/state"
)

// Report summarizes one completed run.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Issues    []issue.Issue
}

// Critical reports whether any issue in the run is critical.
func (r Report) Critical() bool {
	for _, iss := range r.Issues {
		if iss.Severity == issue.SeverityCritical {
			return true
		}
	}
	return false
}

// Watchdog runs monitors sequentially against shared persisted state.
// Monitors run in registration order so container health is evaluated
// before process and system pressure checks.
type Watchdog struct {
	store    *state.Store
	monitors []monitor.Monitor
	log      *slog.Logger
	runID    string
	dryRun   bool
	now      func() time.Time
}

func New(store *state.Store, monitors []monitor.Monitor, runID string, dryRun bool, log *slog.Logger) *Watchdog {
	if log == nil {
		log = slog.Default()
	}
	return &Watchdog{
		store:    store,
		monitors: monitors,
		log:      log,
		runID:    runID,
		dryRun:   dryRun,
		now:      time.Now,
	}
}

// Run executes one check cycle. A state load or save failure is fatal;
// individual monitor findings are collected, never short-circuited.
func (w *Watchdog) Run(ctx context.Context) (Report, error) {
	started := w.now()
	report := Report{RunID: w.runID, StartedAt: started}

	st, err := w.store.Load()
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}

	for _, m := range w.monitors {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		found := m.Check(ctx, st)
		if len(found) > 0 {
			w.log.Info("monitor found issues", "monitor", m.Name(), "count", len(found))
		}
		report.Issues = append(report.Issues, found...)
	}

	st.LastCheckTime = w.now()

	if w.dryRun {
		w.log.Info("dry run, skipping state save")
	} else if err := w.store.Save(st); err != nil {
		return report, fmt.Errorf("save state: %w", err)
	}

	report.Duration = w.now().Sub(started)
	return report, nil
}
