// Package state loads and persists the durable watchdog state: restart
// timers and the known-issue registry. The state lives in a single JSON
// document with owner-only permissions; it is read once at the start of an
// invocation and written once at the end.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hostwatch/hostwatch/internal/issue"
)

// WatchdogState is the durable state shared across invocations. Persisted
// state is the only continuity between runs: backoff and dedup correctness
// rely on read-at-start / write-at-end, not on invocation atomicity.
type WatchdogState struct {
	// LastRestartTime is the last container-restart attempt, nil before
	// the first restart. Drives the anti-thrash backoff window.
	LastRestartTime *time.Time `json:"last_restart_time,omitempty"`

	// RestartCount counts restart attempts; reset to 0 on a healthy check.
	RestartCount int `json:"restart_count"`

	// LastCheckTime is set at the end of every invocation.
	LastCheckTime time.Time `json:"last_check_time"`

	// ConsecutiveFailures counts unhealthy probes; reset on success or
	// on a verified restart.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// KnownIssues maps dedup keys to first-seen timestamps.
	KnownIssues map[string]time.Time `json:"known_issues"`
}

// New returns an empty state with zeroed counters.
func New() *WatchdogState {
	return &WatchdogState{
		KnownIssues: make(map[string]time.Time),
	}
}

// Store reads and writes the state document at a fixed path.
type Store struct {
	path string
	log  *slog.Logger
}

// NewStore creates a store for the given state file path.
func NewStore(path string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{path: path, log: log}
}

// Path returns the state file location.
func (s *Store) Path() string { return s.path }

// Load reads the persisted state, returning zeroed defaults when no file
// exists yet. A present-but-unparseable file is an error: silently
// discarding state would reset backoff and risk restart thrashing.
func (s *Store) Load() (*WatchdogState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	st := New()
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parsing state file %s: %w", s.path, err)
	}
	if st.KnownIssues == nil {
		st.KnownIssues = make(map[string]time.Time)
	}
	return st, nil
}

// Save persists the state atomically: write to a temp file, then rename
// over the target. The file is created owner-read/write only and its
// parent directory owner-traversal only. Permission tightening failures
// are logged and swallowed; a failed write is returned so the invocation
// can abort rather than lose backoff and dedup state.
func (s *Store) Save(st *WatchdogState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	if err := os.Chmod(dir, 0o700); err != nil {
		s.log.Warn("could not tighten state directory permissions", "dir", dir, "err", err)
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	if err := os.Chmod(s.path, 0o600); err != nil {
		s.log.Warn("could not tighten state file permissions", "path", s.path, "err", err)
	}
	return nil
}

// Dismiss registers a pid as already-seen for every issue type, so an
// operator can suppress re-alerting for a process they have reviewed. The
// suppression lasts until the pid disappears from a snapshot (or is
// recycled by a new process). Persisted immediately.
func (s *Store) Dismiss(pid string, now time.Time) error {
	st, err := s.Load()
	if err != nil {
		return err
	}
	for _, t := range issue.Types {
		issue.Record(st.KnownIssues, issue.Key(t, pid), now)
	}
	return s.Save(st)
}
