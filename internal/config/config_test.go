package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostwatch/hostwatch/internal/policy"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/hostwatch/state.json", cfg.StateFile)
	assert.Equal(t, policy.ModeAuto, cfg.Actions.RestartContainer)
	assert.Equal(t, policy.ModeAsk, cfg.Actions.KillForSwap)
	assert.Equal(t, 60, cfg.Container.BackoffMinutes)
	assert.Equal(t, 80.0, cfg.System.SwapThreshold)
}

func TestLoadFileJSONOverlaysDefaults(t *testing.T) {
	path := writeFile(t, "hostwatch.json", `{
		"state_file": "/srv/hostwatch/state.json",
		"process": {"cpu_threshold": 75},
		"actions": {"kill_runaway": "ask"}
	}`)

	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/srv/hostwatch/state.json", cfg.StateFile)
	assert.Equal(t, 75.0, cfg.Process.CPUThreshold)
	assert.Equal(t, policy.ModeAsk, cfg.Actions.KillRunaway)
	// Untouched fields keep defaults.
	assert.Equal(t, 2048.0, cfg.Process.MemoryThresholdMB)
	assert.Equal(t, policy.ModeAsk, cfg.Actions.KillUnknown)
}

func TestLoadFileRejectsUnknownFields(t *testing.T) {
	jsonPath := writeFile(t, "bad.json", `{"state_fiel": "/tmp/x"}`)
	assert.Error(t, LoadFile(Default(), jsonPath))

	yamlPath := writeFile(t, "bad.yaml", "swap_treshold: 90\n")
	assert.Error(t, LoadFile(Default(), yamlPath))
}

func TestLoadFileYAML(t *testing.T) {
	path := writeFile(t, "hostwatch.yaml", `
system:
  swap_threshold: 85
  check_dstate: true
`)
	cfg := Default()
	require.NoError(t, LoadFile(cfg, path))

	assert.Equal(t, 85.0, cfg.System.SwapThreshold)
	assert.True(t, cfg.System.CheckDState)
}

func TestApplyEnvOverridesFile(t *testing.T) {
	t.Setenv("HOSTWATCH_SWAP_THRESHOLD", "70")
	t.Setenv("HOSTWATCH_ACTION_KILL_RUNAWAY", "deny")
	t.Setenv("HOSTWATCH_CHECK_DSTATE", "true")
	t.Setenv("HOSTWATCH_STATE_FILE", "/run/hostwatch/state.json")

	cfg := Default()
	cfg.System.SwapThreshold = 95 // pretend this came from a file
	ApplyEnv(cfg)

	assert.Equal(t, 70.0, cfg.System.SwapThreshold)
	assert.Equal(t, policy.ModeDeny, cfg.Actions.KillRunaway)
	assert.True(t, cfg.System.CheckDState)
	assert.Equal(t, "/run/hostwatch/state.json", cfg.StateFile)
}

func TestApplyEnvPatternLists(t *testing.T) {
	t.Setenv("HOSTWATCH_SAFE_TO_KILL_PATTERNS", "worker, ffmpeg ,stress-ng")
	t.Setenv("HOSTWATCH_SWAP_KILL_PATTERNS", "batch-job")
	t.Setenv("HOSTWATCH_IGNORE_PATTERNS", "postgres")

	cfg := Default()
	ApplyEnv(cfg)

	assert.Equal(t, []string{"worker", "ffmpeg", "stress-ng"}, cfg.Process.SafeToKillPatterns)
	assert.Equal(t, []string{"batch-job"}, cfg.System.SwapKillPatterns)
	assert.Equal(t, []string{"postgres"}, cfg.Process.IgnorePatterns)
	require.NoError(t, cfg.Validate())

	// Env-set kill patterns still go through the deny-list check.
	t.Setenv("HOSTWATCH_SAFE_TO_KILL_PATTERNS", "bash")
	cfg = Default()
	ApplyEnv(cfg)
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnsafePatterns(t *testing.T) {
	cfg := Default()
	cfg.Process.SafeToKillPatterns = []string{"sh"}
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.System.SwapKillPatterns = []string{"PYTHON"}
	assert.Error(t, cfg.Validate())

	// Ignore patterns may be broad.
	cfg = Default()
	cfg.Process.IgnorePatterns = []string{"sh"}
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnsafePaths(t *testing.T) {
	cfg := Default()
	cfg.StateFile = "relative/state.json"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Container.HealthURL = "http://localhost:8080/health"
	cfg.Container.ComposeDir = "/srv/app;rm -rf /"
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsBadActionMode(t *testing.T) {
	cfg := Default()
	cfg.Actions.KillForSwap = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresComposeDirForContainerMonitor(t *testing.T) {
	cfg := Default()
	cfg.Container.HealthURL = "http://localhost:8080/health"
	assert.Error(t, cfg.Validate())

	cfg.Container.ComposeDir = "/srv/app"
	assert.NoError(t, cfg.Validate())
}

func TestValidateFillsUnsetActionSlots(t *testing.T) {
	cfg := Default()
	cfg.Actions = policy.Actions{KillUnknown: policy.ModeDeny}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, policy.ModeDeny, cfg.Actions.KillUnknown)
	assert.Equal(t, policy.ModeAuto, cfg.Actions.RestartContainer)
}
