// Package validate rejects unsafe configuration values before they can be
// used to build commands. Kill patterns and filesystem paths feed directly
// into process termination and subprocess invocation, so both are checked
// eagerly at startup and any failure aborts the invocation.
package validate

import (
	"fmt"
	"path/filepath"
	"strings"
)

// InvalidPatternError reports a kill pattern that could match too broadly
// or is otherwise unusable as a safety boundary.
type InvalidPatternError struct {
	Pattern string
	Context string
	Reason  string
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid pattern %q in %s: %s", e.Pattern, e.Context, e.Reason)
}

// InvalidPathError reports a filesystem path that is unsafe to hand to an
// externally-invoked command.
type InvalidPathError struct {
	Path    string
	Context string
	Reason  string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q in %s: %s", e.Path, e.Context, e.Reason)
}

// denyTokens are patterns rejected outright regardless of length. A pattern
// used to match-and-kill processes must not be able to match "everything":
// structural tokens match every command line, and bare interpreter names
// would authorize killing arbitrary scripts.
var denyTokens = []string{
	".", "..", "/", `\`, " ",
	"sh", "bash", "zsh", "dash", "fish",
	"python", "python3", "perl", "ruby", "node", "java",
}

// Patterns validates a list of kill patterns. Each pattern must be at least
// three characters and must not equal (case-insensitively) any deny-list
// token. context names the config field for the error message.
func Patterns(patterns []string, context string) error {
	for _, p := range patterns {
		if p == "" {
			return &InvalidPatternError{Pattern: p, Context: context, Reason: "pattern is empty"}
		}
		if len(p) < 3 {
			return &InvalidPatternError{Pattern: p, Context: context, Reason: "pattern shorter than 3 characters"}
		}
		for _, tok := range denyTokens {
			if strings.EqualFold(p, tok) {
				return &InvalidPatternError{Pattern: p, Context: context, Reason: "pattern would match too broadly"}
			}
		}
	}
	return nil
}

// shellMetachars are the characters that make a path dangerous inside a
// shell command line.
const shellMetachars = ";&|`$(){}[]<>!#*?~"

// Path validates a filesystem path that will be passed to an external
// command. Shell metacharacters are rejected to prevent injection, and the
// path must be absolute so the command cannot resolve it against an
// unexpected working directory.
func Path(path, context string) error {
	if path == "" {
		return &InvalidPathError{Path: path, Context: context, Reason: "path is empty"}
	}
	if strings.ContainsAny(path, shellMetachars) {
		return &InvalidPathError{Path: path, Context: context, Reason: "path contains shell metacharacters"}
	}
	if !filepath.IsAbs(path) {
		return &InvalidPathError{Path: path, Context: context, Reason: "path must be absolute"}
	}
	return nil
}
