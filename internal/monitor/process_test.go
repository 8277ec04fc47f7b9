package monitor

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/issue"
	"github.com/hostwatch/hostwatch/internal/policy"
	"github.com/hostwatch/hostwatch/internal/state"
)

func processConfig() config.ProcessConfig {
	return config.ProcessConfig{
		Enabled:            true,
		CPUThreshold:       90,
		MaxRuntimeHours:    2,
		MemoryThresholdMB:  2048,
		IgnorePatterns:     []string{"hostwatch", "postgres"},
		SafeToKillPatterns: []string{"worker", "ffmpeg"},
	}
}

func runawayProc(pid, command string) issue.ProcessInfo {
	return issue.ProcessInfo{
		PID:          pid,
		CPUPercent:   97.5,
		MemoryMB:     100,
		RuntimeHours: 5,
		Elapsed:      "05:00:00",
		State:        "R",
		Command:      command,
	}
}

func newProcessUnderTest(cfg config.ProcessConfig, actions policy.Actions, snap *fakeSnapshotter, killer *fakeKiller, h *effectsHarness) *ProcessMonitor {
	return NewProcessMonitor(cfg, actions, snap, killer, h.fx, nil)
}

func TestRunawaySafeProcessKilled(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "python worker.py")}}
	killer := &fakeKiller{}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, killer, h)

	st := state.New()
	issues := m.Check(context.Background(), st)

	require.Len(t, issues, 1)
	assert.Equal(t, issue.TypeRunaway, issues[0].Type)
	// A successful auto-kill downgrades to warning: the problem is handled.
	assert.Equal(t, issue.SeverityWarning, issues[0].Severity)
	require.NotNil(t, issues[0].AutoKilled)
	assert.True(t, *issues[0].AutoKilled)
	assert.Equal(t, []string{"1234"}, killer.killed)
	require.Len(t, h.notifier.sent, 1)
	assert.False(t, h.notifier.sent[0].isError)
}

func TestRunawayUnsafeProcessNeverAutoKilled(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "mysqld --datadir=/var/lib/mysql")}}
	killer := &fakeKiller{}

	// Even with every slot forced to auto, an unsafe command is not killed.
	actions := policy.Actions{
		RestartContainer: policy.ModeAuto,
		KillRunaway:      policy.ModeAuto,
		KillUnknown:      policy.ModeAuto,
		KillForSwap:      policy.ModeAuto,
		RestartForSwap:   policy.ModeAuto,
	}
	m := newProcessUnderTest(processConfig(), actions, snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Equal(t, issue.SeverityCritical, issues[0].Severity)
	assert.Nil(t, issues[0].AutoKilled)
	assert.Empty(t, killer.killed)
	require.Len(t, h.notifier.sent, 1)
	assert.True(t, h.notifier.sent[0].isError)
}

func TestRunawaySafeMatchAskModeGuides(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "python worker.py")}}
	killer := &fakeKiller{}

	actions := policy.Defaults()
	actions.KillRunaway = policy.ModeAsk
	m := newProcessUnderTest(processConfig(), actions, snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Equal(t, issue.SeverityCritical, issues[0].Severity)
	assert.Nil(t, issues[0].AutoKilled)
	assert.Empty(t, killer.killed)
	require.Len(t, h.guide.emitted, 1)
	assert.Equal(t, "1234", h.guide.emitted[0].PID)
	assert.Empty(t, h.notifier.sent)
}

func TestRunawaySafeMatchDenyModeNotifies(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "python worker.py")}}
	killer := &fakeKiller{}

	actions := policy.Defaults()
	actions.KillRunaway = policy.ModeDeny
	m := newProcessUnderTest(processConfig(), actions, snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Equal(t, issue.SeverityCritical, issues[0].Severity)
	assert.Empty(t, killer.killed)
	assert.Empty(t, h.guide.emitted)
	require.Len(t, h.notifier.sent, 1)
	assert.True(t, h.notifier.sent[0].isError)
}

func TestRunawayUnsafeDefaultsToGuidance(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "mysqld")}}
	killer := &fakeKiller{}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Empty(t, killer.killed)
	assert.Len(t, h.guide.emitted, 1)
}

func TestIgnorePatternSuppressesRunaway(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "postgres: writer process")}}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, &fakeKiller{}, h)

	assert.Empty(t, m.Check(context.Background(), state.New()))
}

func TestRunawayRequiresBothThresholds(t *testing.T) {
	hot := runawayProc("1", "python worker.py")
	hot.RuntimeHours = 0.5 // busy but young

	old := runawayProc("2", "python worker.py")
	old.CPUPercent = 10 // long-lived but idle

	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{hot, old}}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, &fakeKiller{}, h)

	assert.Empty(t, m.Check(context.Background(), state.New()))
}

func TestMemoryHogIsWarningOnly(t *testing.T) {
	h := newEffectsHarness()
	proc := issue.ProcessInfo{
		PID: "2222", CPUPercent: 5, MemoryMB: 4096, RuntimeHours: 3,
		Command: "java -Xmx8g app.jar",
	}
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{proc}}
	killer := &fakeKiller{}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Equal(t, issue.TypeMemory, issues[0].Type)
	assert.Equal(t, issue.SeverityWarning, issues[0].Severity)
	assert.Empty(t, killer.killed)
}

func TestMemoryHogBelowOneHourSkipped(t *testing.T) {
	h := newEffectsHarness()
	proc := issue.ProcessInfo{PID: "2222", MemoryMB: 4096, RuntimeHours: 0.5, Command: "java app.jar"}
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{proc}}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, &fakeKiller{}, h)

	assert.Empty(t, m.Check(context.Background(), state.New()))
}

// The dedup registry gates the whole issue: a second check over the same
// snapshot produces no new issues, no kills, and no notifications.
func TestSecondCheckIsSilent(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "mysqld")}}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, &fakeKiller{}, h)

	st := state.New()
	first := m.Check(context.Background(), st)
	require.Len(t, first, 1)
	guided := len(h.guide.emitted)

	second := m.Check(context.Background(), st)
	assert.Empty(t, second)
	assert.Len(t, h.guide.emitted, guided)
	assert.Empty(t, h.notifier.sent)
}

func TestRegistryPrunedWhenProcessExits(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "mysqld")}}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, &fakeKiller{}, h)

	st := state.New()
	m.Check(context.Background(), st)
	assert.Contains(t, st.KnownIssues, issue.Key(issue.TypeRunaway, "1234"))

	snap.procs = nil
	m.Check(context.Background(), st)
	assert.NotContains(t, st.KnownIssues, issue.Key(issue.TypeRunaway, "1234"))

	// The pid reappearing later is a fresh issue.
	snap.procs = []issue.ProcessInfo{runawayProc("1234", "mysqld")}
	issues := m.Check(context.Background(), st)
	assert.Len(t, issues, 1)
}

func TestDryRunClassifiesWithoutKilling(t *testing.T) {
	h := newEffectsHarness()
	h.fx.DryRun = true
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "python worker.py")}}
	killer := &fakeKiller{}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0].Message, "would kill")
	assert.Empty(t, killer.killed)
}

func TestKillFailureStaysCritical(t *testing.T) {
	h := newEffectsHarness()
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{runawayProc("1234", "python worker.py")}}
	killer := &fakeKiller{fail: true}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, killer, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 1)
	assert.Equal(t, issue.SeverityCritical, issues[0].Severity)
	require.NotNil(t, issues[0].AutoKilled)
	assert.False(t, *issues[0].AutoKilled)
	require.Len(t, h.notifier.sent, 1)
	assert.True(t, h.notifier.sent[0].isError)
}

func TestProcessTriggeringBothChecks(t *testing.T) {
	h := newEffectsHarness()
	proc := runawayProc("1234", "python worker.py")
	proc.MemoryMB = 4096
	snap := &fakeSnapshotter{procs: []issue.ProcessInfo{proc}}
	m := newProcessUnderTest(processConfig(), policy.Defaults(), snap, &fakeKiller{}, h)

	issues := m.Check(context.Background(), state.New())
	require.Len(t, issues, 2)
	types := []issue.Type{issues[0].Type, issues[1].Type}
	assert.Contains(t, types, issue.TypeRunaway)
	assert.Contains(t, types, issue.TypeMemory)
}

func TestShortCommandTruncates(t *testing.T) {
	long := strings.Repeat("x", 200)
	got := shortCommand(long)
	assert.Len(t, got, 80)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "ls -la", shortCommand("ls -la"))
}
