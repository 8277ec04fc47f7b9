// Package policy maps issue classes to action modes. It is a pure lookup:
// monitors consult it per candidate issue to learn whether they may execute
// a remediation automatically, should only recommend it to a human, or must
// merely record the issue.
package policy

import "fmt"

// Mode controls how a remediation class is handled.
type Mode string

const (
	// ModeAuto executes the remediation without asking.
	ModeAuto Mode = "auto"
	// ModeAsk surfaces remediation guidance for human review instead of acting.
	ModeAsk Mode = "ask"
	// ModeDeny records the issue and sends a notification, nothing else.
	ModeDeny Mode = "deny"
)

// Valid reports whether m is a recognized mode. The empty mode is not
// valid; merging replaces empty slots with defaults before validation.
func (m Mode) Valid() bool {
	switch m {
	case ModeAuto, ModeAsk, ModeDeny:
		return true
	}
	return false
}

// Actions holds the per-class action modes. Defaults are conservative:
// container restarts and safe-pattern kills are bounded and reversible so
// they default to auto; everything touching an unknown process or a
// swap-driven kill/restart has unbounded blast radius and defaults to ask.
type Actions struct {
	RestartContainer Mode `json:"restart_container" yaml:"restart_container"`
	KillRunaway      Mode `json:"kill_runaway" yaml:"kill_runaway"`
	KillUnknown      Mode `json:"kill_unknown" yaml:"kill_unknown"`
	KillForSwap      Mode `json:"kill_for_swap" yaml:"kill_for_swap"`
	RestartForSwap   Mode `json:"restart_for_swap" yaml:"restart_for_swap"`
}

// Defaults returns the conservative default action table.
func Defaults() Actions {
	return Actions{
		RestartContainer: ModeAuto,
		KillRunaway:      ModeAuto,
		KillUnknown:      ModeAsk,
		KillForSwap:      ModeAsk,
		RestartForSwap:   ModeAsk,
	}
}

// WithDefaults fills unset slots from the default table, leaving
// configured slots untouched.
func (a Actions) WithDefaults() Actions {
	def := Defaults()
	if a.RestartContainer == "" {
		a.RestartContainer = def.RestartContainer
	}
	if a.KillRunaway == "" {
		a.KillRunaway = def.KillRunaway
	}
	if a.KillUnknown == "" {
		a.KillUnknown = def.KillUnknown
	}
	if a.KillForSwap == "" {
		a.KillForSwap = def.KillForSwap
	}
	if a.RestartForSwap == "" {
		a.RestartForSwap = def.RestartForSwap
	}
	return a
}

// Validate checks every slot holds a recognized mode.
func (a Actions) Validate() error {
	slots := map[string]Mode{
		"restart_container": a.RestartContainer,
		"kill_runaway":      a.KillRunaway,
		"kill_unknown":      a.KillUnknown,
		"kill_for_swap":     a.KillForSwap,
		"restart_for_swap":  a.RestartForSwap,
	}
	for name, m := range slots {
		if !m.Valid() {
			return fmt.Errorf("invalid action mode %q for %s (must be auto, ask, or deny)", m, name)
		}
	}
	return nil
}

// ForRunaway returns the mode governing a runaway-process kill. A process
// whose command matched a safe-to-kill pattern uses the kill_runaway slot;
// everything else is an unknown process and uses kill_unknown.
func (a Actions) ForRunaway(safe bool) Mode {
	if safe {
		return a.KillRunaway
	}
	return a.KillUnknown
}
