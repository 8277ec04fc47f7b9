package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/hostwatch/hostwatch/internal/issue"
)

// fakeProber returns queued results in order, repeating the last one.
type fakeProber struct {
	results []ProbeResult
	calls   int
}

func (f *fakeProber) Probe(_ context.Context, _ string, _ time.Duration) ProbeResult {
	i := f.calls
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	f.calls++
	return f.results[i]
}

type fakeController struct {
	restarts  []string
	recreates []string
	fail      bool
}

func (f *fakeController) Restart(_ context.Context, service string) error {
	f.restarts = append(f.restarts, service)
	if f.fail {
		return errors.New("compose restart failed")
	}
	return nil
}

func (f *fakeController) Recreate(_ context.Context, service string) error {
	f.recreates = append(f.recreates, service)
	if f.fail {
		return errors.New("compose recreate failed")
	}
	return nil
}

type fakeSnapshotter struct {
	procs []issue.ProcessInfo
}

func (f *fakeSnapshotter) Snapshot(_ context.Context) []issue.ProcessInfo {
	return f.procs
}

type fakeKiller struct {
	killed []string
	fail   bool
}

func (f *fakeKiller) Kill(pid string) bool {
	f.killed = append(f.killed, pid)
	return !f.fail
}

type fakeSwap struct {
	totalMB int
	usedMB  int
	err     error
}

func (f *fakeSwap) Read() (int, int, error) {
	return f.totalMB, f.usedMB, f.err
}

type sentNote struct {
	title   string
	isError bool
}

type fakeNotifier struct {
	sent []sentNote
}

func (f *fakeNotifier) Send(_ context.Context, title, _ string, isError bool) {
	f.sent = append(f.sent, sentNote{title: title, isError: isError})
}

type fakeGuide struct {
	emitted []issue.Issue
}

func (f *fakeGuide) Emit(_ context.Context, iss issue.Issue) {
	f.emitted = append(f.emitted, iss)
}

type journalEntry struct {
	action  string
	target  string
	outcome string
}

type fakeJournal struct {
	issues  []issue.Issue
	actions []journalEntry
}

func (f *fakeJournal) LogIssue(_ context.Context, iss issue.Issue) {
	f.issues = append(f.issues, iss)
}

func (f *fakeJournal) LogAction(_ context.Context, action, target, outcome string) {
	f.actions = append(f.actions, journalEntry{action, target, outcome})
}

type fakeConfirmer struct {
	answer bool
	asked  []string
}

func (f *fakeConfirmer) Confirm(question string) bool {
	f.asked = append(f.asked, question)
	return f.answer
}

// effectsHarness bundles the fakes behind one Effects value.
type effectsHarness struct {
	notifier *fakeNotifier
	guide    *fakeGuide
	journal  *fakeJournal
	fx       *Effects
}

func newEffectsHarness() *effectsHarness {
	h := &effectsHarness{
		notifier: &fakeNotifier{},
		guide:    &fakeGuide{},
		journal:  &fakeJournal{},
	}
	h.fx = &Effects{Notify: h.notifier, Guide: h.guide, Journal: h.journal}
	return h
}
