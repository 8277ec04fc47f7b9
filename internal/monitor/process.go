package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/issue"
	"github.com/hostwatch/hostwatch/internal/policy"
	"github.com/hostwatch/hostwatch/internal/state"
)

// findingKind distinguishes the two independent process checks. A single
// process may trigger both.
type findingKind int

const (
	findingRunaway findingKind = iota
	findingMemory
)

// finding is the pure classification result for one process: what was
// detected and whether the command matched a safe-to-kill pattern. No
// effects have happened yet.
type finding struct {
	proc issue.ProcessInfo
	kind findingKind
	safe bool
}

// ProcessMonitor is the snapshot-diff based runaway and memory-hog
// detector with a pattern-gated kill policy.
type ProcessMonitor struct {
	cfg     config.ProcessConfig
	actions policy.Actions
	snap    Snapshotter
	killer  Killer
	fx      *Effects
	log     *slog.Logger
	now     func() time.Time
}

// NewProcessMonitor wires the process monitor.
func NewProcessMonitor(cfg config.ProcessConfig, actions policy.Actions, snap Snapshotter, killer Killer, fx *Effects, log *slog.Logger) *ProcessMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &ProcessMonitor{
		cfg:     cfg,
		actions: actions,
		snap:    snap,
		killer:  killer,
		fx:      fx,
		log:     log,
		now:     time.Now,
	}
}

// Name implements Monitor.
func (m *ProcessMonitor) Name() string { return "process" }

// Check snapshots the process table, classifies every process, applies the
// action policy to findings that are new in the dedup registry, and then
// prunes registry entries for pids that have disappeared.
func (m *ProcessMonitor) Check(ctx context.Context, st *state.WatchdogState) []issue.Issue {
	procs := m.snap.Snapshot(ctx)
	findings := m.classify(procs)

	var issues []issue.Issue
	for _, f := range findings {
		var key string
		if f.kind == findingRunaway {
			key = issue.Key(issue.TypeRunaway, f.proc.PID)
		} else {
			key = issue.Key(issue.TypeMemory, f.proc.PID)
		}
		if !issue.IsNew(st.KnownIssues, key) {
			continue
		}

		var iss issue.Issue
		if f.kind == findingRunaway {
			iss = m.applyRunaway(ctx, f)
		} else {
			iss = m.applyMemory(ctx, f)
		}
		issue.Record(st.KnownIssues, key, m.now())
		m.fx.logIssue(ctx, iss)
		issues = append(issues, iss)
	}

	if pruned := issue.PruneDead(st.KnownIssues, issue.LivePIDs(procs)); len(pruned) > 0 {
		m.log.Info("cleared resolved process issues", "keys", pruned)
	}
	return issues
}

// classify is the pure decision step: snapshot in, findings out. Both
// conditions are evaluated independently per process.
func (m *ProcessMonitor) classify(procs []issue.ProcessInfo) []finding {
	var findings []finding
	for _, p := range procs {
		if p.CPUPercent > m.cfg.CPUThreshold &&
			p.RuntimeHours > m.cfg.MaxRuntimeHours &&
			!MatchesIgnore(p.Command, m.cfg.IgnorePatterns) {
			findings = append(findings, finding{
				proc: p,
				kind: findingRunaway,
				safe: SafeToKill(p.Command, m.cfg.SafeToKillPatterns),
			})
		}
		if p.MemoryMB > m.cfg.MemoryThresholdMB && p.RuntimeHours > 1 {
			findings = append(findings, finding{proc: p, kind: findingMemory})
		}
	}
	return findings
}

func (m *ProcessMonitor) applyRunaway(ctx context.Context, f finding) issue.Issue {
	iss := issue.Issue{
		Type:     issue.TypeRunaway,
		Severity: issue.SeverityCritical,
		Message: fmt.Sprintf("runaway process pid %s: %.1f%% cpu for %.1fh (%s)",
			f.proc.PID, f.proc.CPUPercent, f.proc.RuntimeHours, shortCommand(f.proc.Command)),
		PID:     f.proc.PID,
		Command: f.proc.Command,
	}

	mode := m.actions.ForRunaway(f.safe)
	question := fmt.Sprintf("Kill runaway pid %s (%s)?", f.proc.PID, shortCommand(f.proc.Command))

	decision := m.fx.Decide(mode, question)
	if decision == DecisionExecute && !f.safe {
		// Automatic kills require a safe-to-kill match even when the
		// unknown-process slot was overridden to auto.
		decision = DecisionNotifyOnly
	}

	switch decision {
	case DecisionExecute:
		if m.fx.DryRun {
			iss.Message += "; would kill"
			return iss
		}
		killed := m.killer.Kill(f.proc.PID)
		iss.AutoKilled = &killed
		if killed {
			iss.Severity = issue.SeverityWarning
			m.fx.logAction(ctx, "kill", f.proc.PID, "succeeded")
			m.fx.notify(ctx, "Runaway process killed", iss.Message, false)
		} else {
			m.fx.logAction(ctx, "kill", f.proc.PID, "failed")
			m.fx.notify(ctx, "Runaway process kill failed", iss.Message, true)
		}
	case DecisionGuide:
		m.fx.guide(ctx, iss)
	default:
		// Nothing else will surface a denied issue, so notify.
		m.fx.notify(ctx, "Runaway process detected", iss.Message, true)
	}
	return iss
}

func (m *ProcessMonitor) applyMemory(ctx context.Context, f finding) issue.Issue {
	iss := issue.Issue{
		Type:     issue.TypeMemory,
		Severity: issue.SeverityWarning,
		Message: fmt.Sprintf("memory hog pid %s: %.0f MB resident for %.1fh (%s)",
			f.proc.PID, f.proc.MemoryMB, f.proc.RuntimeHours, shortCommand(f.proc.Command)),
		PID:     f.proc.PID,
		Command: f.proc.Command,
	}

	// Memory issues are never auto-killed by this monitor; the swap path
	// owns memory-motivated kills.
	if m.actions.KillUnknown == policy.ModeAsk {
		m.fx.guide(ctx, iss)
	} else {
		m.fx.notify(ctx, "Memory hog detected", iss.Message, true)
	}
	return iss
}

func shortCommand(cmd string) string {
	const max = 80
	if len(cmd) > max {
		return cmd[:max-3] + "..."
	}
	return cmd
}
