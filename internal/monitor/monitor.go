// Package monitor holds the three host monitors and the contracts of their
// external collaborators. Monitors run sequentially within one invocation
// against shared in-memory state; each one separates a pure classification
// step from effect execution so the policy logic is testable without any
// subprocess, network, or filesystem dependency.
package monitor

import (
	"context"
	"time"

	"github.com/hostwatch/hostwatch/internal/issue"
	"github.com/hostwatch/hostwatch/internal/policy"
	"github.com/hostwatch/hostwatch/internal/state"
)

// Monitor is one health check pass. Check inspects the current system
// snapshot, mutates the shared watchdog state (dedup registry, restart
// timers) and returns the issues detected this invocation.
type Monitor interface {
	Name() string
	Check(ctx context.Context, st *state.WatchdogState) []issue.Issue
}

// ProbeResult is the outcome of one health probe.
type ProbeResult struct {
	Healthy         bool
	ResponseSeconds float64
	// Err is the probe-level failure (timeout, refused connection);
	// empty when the request completed.
	Err string
}

// HealthProber performs an HTTP health check with a hard timeout.
type HealthProber interface {
	Probe(ctx context.Context, url string, timeout time.Duration) ProbeResult
}

// ServiceController stops and starts compose-managed services.
type ServiceController interface {
	// Restart stops then starts a service; an empty name targets the
	// whole stack.
	Restart(ctx context.Context, service string) error
	// Recreate tears down and re-ups; an empty name recreates the whole
	// stack (down + up).
	Recreate(ctx context.Context, service string) error
}

// Snapshotter returns the current process table. On failure it returns an
// empty list; the monitors treat that as "no processes found", not fatal.
type Snapshotter interface {
	Snapshot(ctx context.Context) []issue.ProcessInfo
}

// Killer terminates one OS process. Returns false when the signal could
// not be delivered.
type Killer interface {
	Kill(pid string) bool
}

// SwapReader reads total and used swap in MB.
type SwapReader interface {
	Read() (totalMB, usedMB int, err error)
}

// Notifier delivers an outbound alert. Best-effort: implementations log
// failures instead of raising them.
type Notifier interface {
	Send(ctx context.Context, title, message string, isError bool)
}

// Guide renders human-readable remediation guidance for an issue that was
// surfaced for review instead of acted on.
type Guide interface {
	Emit(ctx context.Context, iss issue.Issue)
}

// Journal records issues and remediation attempts. Implementations are
// best-effort; a nil Journal in Effects disables recording.
type Journal interface {
	LogIssue(ctx context.Context, iss issue.Issue)
	LogAction(ctx context.Context, action, target, outcome string)
}

// Confirmer asks the operator to approve an action in interactive runs.
type Confirmer interface {
	Confirm(question string) bool
}

// Decision is the resolved outcome of an action-mode lookup.
type Decision int

const (
	// DecisionExecute runs the remediation.
	DecisionExecute Decision = iota
	// DecisionGuide renders remediation guidance instead of acting.
	DecisionGuide
	// DecisionNotifyOnly records the issue and sends a notification.
	DecisionNotifyOnly
)

// Effects bundles the side-effect sinks shared by all monitors. DryRun
// suppresses kills, restarts and notifications while keeping the
// classification and reporting paths intact.
type Effects struct {
	Notify  Notifier
	Guide   Guide
	Journal Journal
	Confirm Confirmer
	DryRun  bool
}

// Decide resolves an action mode into a concrete decision. In interactive
// runs an ask-mode action may be approved by the operator, in which case
// it executes exactly as auto would; otherwise ask renders guidance.
func (e *Effects) Decide(mode policy.Mode, question string) Decision {
	switch mode {
	case policy.ModeAuto:
		return DecisionExecute
	case policy.ModeAsk:
		if e.Confirm != nil && !e.DryRun && e.Confirm.Confirm(question) {
			return DecisionExecute
		}
		return DecisionGuide
	default:
		return DecisionNotifyOnly
	}
}

func (e *Effects) notify(ctx context.Context, title, message string, isError bool) {
	if e.DryRun || e.Notify == nil {
		return
	}
	e.Notify.Send(ctx, title, message, isError)
}

func (e *Effects) guide(ctx context.Context, iss issue.Issue) {
	if e.Guide == nil {
		return
	}
	e.Guide.Emit(ctx, iss)
}

func (e *Effects) logIssue(ctx context.Context, iss issue.Issue) {
	if e.DryRun || e.Journal == nil {
		return
	}
	e.Journal.LogIssue(ctx, iss)
}

func (e *Effects) logAction(ctx context.Context, action, target, outcome string) {
	if e.DryRun || e.Journal == nil {
		return
	}
	e.Journal.LogAction(ctx, action, target, outcome)
}
