package issue

import (
	"fmt"
	"strings"
	"time"
)

// Type classifies a detected problem. Every monitor emits exactly one of
// these types, and the type participates in dedup key derivation.
type Type string

const (
	TypeContainer Type = "container"
	TypeRunaway   Type = "runaway"
	TypeMemory    Type = "memory"
	TypeStuck     Type = "stuck"
	TypeSwap      Type = "swap"
)

// Types lists every issue type. The dismiss operation registers a key for
// each of these so a pid stops alerting regardless of how it was flagged.
var Types = []Type{TypeContainer, TypeRunaway, TypeMemory, TypeStuck, TypeSwap}

// Severity is the operator-facing impact level of an issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// SwapKey is the singleton dedup key for swap pressure. There is at most
// one active swap issue system-wide, so swap issues never key by pid.
const SwapKey = "swap_critical"

// Issue is one detected problem in one invocation. Issues are transient:
// they are produced, possibly trigger a side effect and a notification,
// then discarded. Only the dedup key survives in the known-issue registry.
type Issue struct {
	Type     Type     `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	PID      string   `json:"pid,omitempty"`
	Command  string   `json:"command,omitempty"`

	// AutoKilled is set only when an automatic kill was attempted:
	// true on success, false on failure, nil when no kill was tried.
	AutoKilled *bool `json:"auto_killed,omitempty"`
}

// Key derives the dedup key for this issue. Swap issues collapse onto the
// SwapKey constant; issues with a pid key by type and pid; everything else
// keys by type and message.
func (i Issue) Key() string {
	if i.Type == TypeSwap {
		return SwapKey
	}
	if i.PID != "" {
		return Key(i.Type, i.PID)
	}
	return fmt.Sprintf("%s:%s", i.Type, i.Message)
}

// Key builds the dedup key for a pid-scoped issue type.
func Key(t Type, pid string) string {
	return fmt.Sprintf("%s:%s", t, pid)
}

// IsNew reports whether key has not been seen before. Only new issues
// trigger notification or guidance.
func IsNew(known map[string]time.Time, key string) bool {
	_, seen := known[key]
	return !seen
}

// Record marks key as seen at firstSeen, keeping an earlier timestamp if
// the key is already registered.
func Record(known map[string]time.Time, key string, firstSeen time.Time) {
	if _, seen := known[key]; seen {
		return
	}
	known[key] = firstSeen
}

// PruneDead removes registry entries whose key encodes a pid that is no
// longer present in the current snapshot. Any key with a numeric pid
// suffix qualifies, including the entries Dismiss registers for types
// that normally key by message; only pid-less keys (swap_critical,
// message-keyed container issues) are exempt. This is how resolved
// per-process issues and operator dismissals auto-clear. Returns the
// pruned keys for logging.
func PruneDead(known map[string]time.Time, livePIDs map[string]bool) []string {
	var pruned []string
	for key := range known {
		pid, ok := splitKey(key)
		if !ok || !numeric(pid) {
			continue
		}
		if !livePIDs[pid] {
			delete(known, key)
			pruned = append(pruned, key)
		}
	}
	return pruned
}

func splitKey(key string) (string, bool) {
	idx := strings.Index(key, ":")
	if idx <= 0 || idx == len(key)-1 {
		return "", false
	}
	return key[idx+1:], true
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// ProcessInfo is one OS process as seen in a snapshot. Produced fresh every
// snapshot, never persisted.
type ProcessInfo struct {
	PID          string
	CPUPercent   float64
	MemoryMB     float64
	RuntimeHours float64
	// Elapsed is the raw etime column ([[dd-]hh:]mm:ss). The stuck-process
	// filter needs the textual form, not just the parsed hours.
	Elapsed string
	State   string
	Command string
}

// LivePIDs builds the pid set of a snapshot for registry pruning.
func LivePIDs(procs []ProcessInfo) map[string]bool {
	live := make(map[string]bool, len(procs))
	for _, p := range procs {
		live[p.PID] = true
	}
	return live
}
