package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternsRejectsShortPatterns(t *testing.T) {
	for _, p := range []string{"", "a", "ab", "no", "x"} {
		err := Patterns([]string{p}, "safe_to_kill_patterns")
		require.Error(t, err, "pattern %q should be rejected", p)

		var perr *InvalidPatternError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, p, perr.Pattern)
		assert.Equal(t, "safe_to_kill_patterns", perr.Context)
	}
}

func TestPatternsRejectsDenyListCaseInsensitive(t *testing.T) {
	for _, p := range []string{"bash", "BASH", "Python", "python3", "PERL", "ruby", "Node", "java", "zsh", "dash", "fish"} {
		err := Patterns([]string{p}, "swap_kill_patterns")
		assert.Error(t, err, "deny-list token %q should be rejected", p)
	}
}

func TestPatternsAcceptsSpecificPatterns(t *testing.T) {
	ok := []string{"workerX", "stress-ng", "ffmpeg", "my-batch-job"}
	assert.NoError(t, Patterns(ok, "safe_to_kill_patterns"))
}

func TestPatternsChecksEveryEntry(t *testing.T) {
	err := Patterns([]string{"workerX", "sh"}, "safe_to_kill_patterns")
	assert.Error(t, err)
}

func TestPathRejectsMetacharacters(t *testing.T) {
	for _, c := range []string{";", "&", "|", "`", "$", "(", ")", "{", "}", "[", "]", "<", ">", "!", "#", "*", "?", "~"} {
		p := "/srv/app" + c + "x"
		err := Path(p, "compose_dir")
		require.Error(t, err, "path with %q should be rejected", c)

		var perr *InvalidPathError
		require.True(t, errors.As(err, &perr))
		assert.Equal(t, "compose_dir", perr.Context)
	}
}

func TestPathRejectsRelative(t *testing.T) {
	for _, p := range []string{"srv/app", "./state.json", "../app", "state.json"} {
		assert.Error(t, Path(p, "state_file"), "relative path %q should be rejected", p)
	}
}

func TestPathRejectsEmpty(t *testing.T) {
	assert.Error(t, Path("", "state_file"))
}

func TestPathAcceptsAbsoluteCleanPath(t *testing.T) {
	assert.NoError(t, Path("/srv/app", "compose_dir"))
	assert.NoError(t, Path("/var/lib/hostwatch/state.json", "state_file"))
}
