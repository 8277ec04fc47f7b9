package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/issue"
	"github.com/hostwatch/hostwatch/internal/policy"
	"github.com/hostwatch/hostwatch/internal/state"
)

// kernelWorkerMarkers identify kernel threads that legitimately sit in
// uninterruptible sleep. Matching is substring containment against the
// command line, same as everywhere else.
var kernelWorkerMarkers = []string{
	"kworker/", "ksoftirqd/", "migration/", "kswapd", "khugepaged", "jbd2/", "kthreadd",
}

// SystemMonitor runs the swap-pressure and stuck-process checks. The two
// checks are independent; either can be active without the other.
type SystemMonitor struct {
	cfg        config.SystemConfig
	actions    policy.Actions
	swap       SwapReader
	snap       Snapshotter
	killer     Killer
	controller ServiceController // nil when no restart target is configured
	fx         *Effects
	log        *slog.Logger
	now        func() time.Time
}

// NewSystemMonitor wires the system monitor. controller may be nil when
// cfg.RestartTarget is empty.
func NewSystemMonitor(cfg config.SystemConfig, actions policy.Actions, swap SwapReader, snap Snapshotter, killer Killer, controller ServiceController, fx *Effects, log *slog.Logger) *SystemMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &SystemMonitor{
		cfg:        cfg,
		actions:    actions,
		swap:       swap,
		snap:       snap,
		killer:     killer,
		controller: controller,
		fx:         fx,
		log:        log,
		now:        time.Now,
	}
}

// Name implements Monitor.
func (m *SystemMonitor) Name() string { return "system" }

// Check runs the swap check and, when enabled, the D-state scan.
func (m *SystemMonitor) Check(ctx context.Context, st *state.WatchdogState) []issue.Issue {
	issues := m.checkSwap(ctx, st)
	if m.cfg.CheckDState {
		issues = append(issues, m.checkStuck(ctx, st)...)
	}
	return issues
}

func (m *SystemMonitor) checkSwap(ctx context.Context, st *state.WatchdogState) []issue.Issue {
	totalMB, usedMB, err := m.swap.Read()
	if err != nil {
		// Collaborator failure: this check contributes zero issues and
		// monitoring continues.
		m.log.Error("swap read failed", "err", err)
		return nil
	}

	pct := 0.0
	if totalMB > 0 {
		pct = float64(usedMB) / float64(totalMB) * 100
	}

	if pct <= m.cfg.SwapThreshold {
		if !issue.IsNew(st.KnownIssues, issue.SwapKey) {
			delete(st.KnownIssues, issue.SwapKey)
			m.fx.notify(ctx, "Swap pressure resolved",
				fmt.Sprintf("swap usage back to %.1f%% (threshold %.1f%%)", pct, m.cfg.SwapThreshold), false)
		}
		return nil
	}

	newIssue := issue.IsNew(st.KnownIssues, issue.SwapKey)
	if newIssue {
		issue.Record(st.KnownIssues, issue.SwapKey, m.now())
	}

	acted := m.remediateSwap(ctx, pct)

	iss := issue.Issue{
		Type:     issue.TypeSwap,
		Severity: issue.SeverityCritical,
		Message:  fmt.Sprintf("swap usage at %.1f%% (threshold %.1f%%)", pct, m.cfg.SwapThreshold),
	}
	m.fx.logIssue(ctx, iss)

	// Steady-state repeated critical swap with no new remediation does
	// not re-notify.
	if newIssue || acted {
		m.fx.notify(ctx, "Swap pressure critical", iss.Message, true)
	}
	return []issue.Issue{iss}
}

// remediateSwap runs the pattern-gated kills and the optional compose
// restart. Reports whether any kill or restart actually occurred.
func (m *SystemMonitor) remediateSwap(ctx context.Context, pct float64) bool {
	acted := false

	if len(m.cfg.SwapKillPatterns) > 0 {
		procs := m.snap.Snapshot(ctx)
		var matches []issue.ProcessInfo
		for _, p := range procs {
			if SafeToKill(p.Command, m.cfg.SwapKillPatterns) {
				matches = append(matches, p)
			}
		}

		if len(matches) > 0 {
			question := fmt.Sprintf("Kill %d process(es) matching swap kill patterns?", len(matches))
			switch m.fx.Decide(m.actions.KillForSwap, question) {
			case DecisionExecute:
				for _, p := range matches {
					if m.fx.DryRun {
						continue
					}
					if m.killer.Kill(p.PID) {
						acted = true
						m.fx.logAction(ctx, "kill", p.PID, "succeeded (swap pressure)")
					} else {
						m.fx.logAction(ctx, "kill", p.PID, "failed (swap pressure)")
					}
				}
			case DecisionGuide:
				for _, p := range matches {
					m.fx.guide(ctx, issue.Issue{
						Type:     issue.TypeSwap,
						Severity: issue.SeverityCritical,
						Message: fmt.Sprintf("swap at %.1f%%: pid %s matches a swap kill pattern (%s)",
							pct, p.PID, shortCommand(p.Command)),
						PID:     p.PID,
						Command: p.Command,
					})
				}
			}
		}
	}

	if m.cfg.RestartTarget != "" && m.controller != nil {
		question := fmt.Sprintf("Restart %s to relieve swap pressure?", m.cfg.RestartTarget)
		if m.fx.Decide(m.actions.RestartForSwap, question) == DecisionExecute && !m.fx.DryRun {
			acted = m.restartTarget(ctx) || acted
		}
	}
	return acted
}

func (m *SystemMonitor) restartTarget(ctx context.Context) bool {
	var err error
	if m.cfg.RestartTarget == "stack" {
		err = m.controller.Recreate(ctx, "")
	} else {
		err = m.controller.Restart(ctx, m.cfg.RestartTarget)
	}
	if err != nil {
		m.log.Error("swap-pressure restart failed", "target", m.cfg.RestartTarget, "err", err)
		m.fx.logAction(ctx, "restart", m.cfg.RestartTarget, "failed: "+err.Error())
		return false
	}
	m.fx.logAction(ctx, "restart", m.cfg.RestartTarget, "succeeded (swap pressure)")
	return true
}

// checkStuck scans for processes blocked in uninterruptible sleep. No
// action is ever taken: a D-state process cannot be terminated by
// ordinary signal delivery, so each one is surfaced immediately.
func (m *SystemMonitor) checkStuck(ctx context.Context, st *state.WatchdogState) []issue.Issue {
	procs := m.snap.Snapshot(ctx)

	var issues []issue.Issue
	for _, p := range procs {
		if !strings.HasPrefix(p.State, "D") {
			continue
		}
		// Entries without an hour/minute separator, or under a minute
		// ("00:0" prefix), are normal transient I/O waits.
		if !strings.Contains(p.Elapsed, ":") || strings.HasPrefix(p.Elapsed, "00:0") {
			continue
		}
		if containsAny(p.Command, kernelWorkerMarkers) {
			continue
		}

		key := issue.Key(issue.TypeStuck, p.PID)
		if !issue.IsNew(st.KnownIssues, key) {
			continue
		}
		issue.Record(st.KnownIssues, key, m.now())

		iss := issue.Issue{
			Type:     issue.TypeStuck,
			Severity: issue.SeverityWarning,
			Message: fmt.Sprintf("process pid %s stuck in uninterruptible sleep for %s (%s)",
				p.PID, p.Elapsed, shortCommand(p.Command)),
			PID:     p.PID,
			Command: p.Command,
		}
		m.fx.logIssue(ctx, iss)
		m.fx.notify(ctx, "Stuck process detected", iss.Message, true)
		issues = append(issues, iss)
	}

	if pruned := issue.PruneDead(st.KnownIssues, issue.LivePIDs(procs)); len(pruned) > 0 {
		m.log.Info("cleared resolved process issues", "keys", pruned)
	}
	return issues
}
