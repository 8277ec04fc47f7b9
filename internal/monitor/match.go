package monitor

import "strings"

// Pattern matching is substring containment against the full command line,
// not anchored and not regex. This keeps the safety lists simple and
// auditable: a pattern "node" would match inside "node_exporter", which is
// exactly why the pattern validator refuses such tokens for the kill lists
// while still allowing them for ignore lists.

func containsAny(command string, patterns []string) bool {
	for _, p := range patterns {
		if p != "" && strings.Contains(command, p) {
			return true
		}
	}
	return false
}

// MatchesIgnore reports whether the command line matches an ignore pattern.
func MatchesIgnore(command string, patterns []string) bool {
	return containsAny(command, patterns)
}

// SafeToKill is the kill-authorization predicate: a match means the
// operator declared this command safe to terminate automatically. The
// patterns must have passed validate.Patterns.
func SafeToKill(command string, patterns []string) bool {
	return containsAny(command, patterns)
}
