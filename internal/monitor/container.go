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

// ContainerMonitor is the health-check + backoff-gated restart state
// machine. Restarts are rate-limited to at most one per backoff window
// regardless of how often the monitor is invoked; that is the anti-thrash
// guarantee, enforced before any probe is sent.
type ContainerMonitor struct {
	cfg        config.ContainerConfig
	actions    policy.Actions
	prober     HealthProber
	controller ServiceController
	fx         *Effects
	log        *slog.Logger

	now   func() time.Time
	sleep func(time.Duration)
}

// NewContainerMonitor wires the container monitor. prober and controller
// are the external collaborators for health checks and compose restarts.
func NewContainerMonitor(cfg config.ContainerConfig, actions policy.Actions, prober HealthProber, controller ServiceController, fx *Effects, log *slog.Logger) *ContainerMonitor {
	if log == nil {
		log = slog.Default()
	}
	return &ContainerMonitor{
		cfg:        cfg,
		actions:    actions,
		prober:     prober,
		controller: controller,
		fx:         fx,
		log:        log,
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Name implements Monitor.
func (m *ContainerMonitor) Name() string { return "container" }

// Check runs one pass of the state machine.
func (m *ContainerMonitor) Check(ctx context.Context, st *state.WatchdogState) []issue.Issue {
	if m.cfg.HealthURL == "" {
		return nil
	}

	now := m.now()
	backoff := time.Duration(m.cfg.BackoffMinutes) * time.Minute
	if st.LastRestartTime != nil && backoff > 0 {
		if since := now.Sub(*st.LastRestartTime); since < backoff {
			m.log.Info("container monitor in restart backoff, skipping",
				"since_restart", since.Round(time.Second), "backoff", backoff)
			return nil
		}
	}

	res := m.prober.Probe(ctx, m.cfg.HealthURL, time.Duration(m.cfg.TimeoutSeconds)*time.Second)
	if m.healthy(res) {
		st.RestartCount = 0
		st.ConsecutiveFailures = 0
		return nil
	}

	st.ConsecutiveFailures++
	reason := unhealthyReason(res, m.cfg.MaxResponseSeconds)
	m.log.Warn("container health check failed",
		"reason", reason, "consecutive_failures", st.ConsecutiveFailures)

	iss := issue.Issue{
		Type:     issue.TypeContainer,
		Severity: issue.SeverityCritical,
		Message:  fmt.Sprintf("container unhealthy (%s)", reason),
	}

	target := m.cfg.Service
	if target == "" {
		target = "stack"
	}

	switch m.fx.Decide(m.actions.RestartContainer, fmt.Sprintf("Restart %s to recover from: %s?", target, reason)) {
	case DecisionExecute:
		// fall through to the restart below
	case DecisionGuide:
		m.fx.guide(ctx, iss)
		m.fx.logIssue(ctx, iss)
		return []issue.Issue{iss}
	default:
		m.fx.notify(ctx, "Container unhealthy", iss.Message, true)
		m.fx.logIssue(ctx, iss)
		return []issue.Issue{iss}
	}

	if m.fx.DryRun {
		iss.Message = fmt.Sprintf("container unhealthy (%s); would restart %s", reason, target)
		return []issue.Issue{iss}
	}

	restartErr := m.controller.Restart(ctx, m.cfg.Service)
	st.LastRestartTime = &now
	st.RestartCount++

	// Exactly one post-restart verification probe, after a short settle.
	if restartErr == nil {
		m.sleep(time.Duration(m.cfg.SettleSeconds) * time.Second)
		verify := m.prober.Probe(ctx, m.cfg.HealthURL, time.Duration(m.cfg.TimeoutSeconds)*time.Second)
		if m.healthy(verify) {
			st.ConsecutiveFailures = 0
			m.fx.logAction(ctx, "restart", target, "succeeded")
			m.fx.notify(ctx, "Container restarted",
				fmt.Sprintf("restarted %s after %s; health check passing again", target, reason), false)
			// Recovery is not itself a problem to track.
			return nil
		}
		restartErr = fmt.Errorf("health check still failing after restart")
	}

	// A restart error and a failed verification are the same outcome:
	// surface for the next backoff-gated attempt or human intervention.
	m.fx.logAction(ctx, "restart", target, "failed: "+restartErr.Error())
	iss.Message = fmt.Sprintf("container restart failed (%s): %v", reason, restartErr)
	m.fx.logIssue(ctx, iss)
	m.fx.notify(ctx, "Container restart failed", iss.Message, true)
	return []issue.Issue{iss}
}

func (m *ContainerMonitor) healthy(res ProbeResult) bool {
	return res.Err == "" && res.Healthy && res.ResponseSeconds <= m.cfg.MaxResponseSeconds
}

func unhealthyReason(res ProbeResult, maxResponse float64) string {
	switch {
	case res.Err != "":
		return "probe error: " + res.Err
	case !res.Healthy:
		return "non-success status"
	case res.ResponseSeconds > maxResponse:
		return fmt.Sprintf("slow response: %.2fs > %.2fs", res.ResponseSeconds, maxResponse)
	default:
		return "unknown"
	}
}
