// Package config assembles the immutable invocation configuration. The
// merge is explicit and ordered (CLI flags > environment > config file >
// defaults), and unknown or malformed fields in a config file are
// rejected rather than silently ignored. The assembled value is validated
// once at startup and then passed by parameter into every component; there
// are no ambient globals.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/hostwatch/hostwatch/internal/policy"
	"github.com/hostwatch/hostwatch/internal/validate"
)

// EnvPrefix is the prefix for environment overrides (HOSTWATCH_STATE_FILE,
// HOSTWATCH_SWAP_THRESHOLD, ...).
const EnvPrefix = "HOSTWATCH_"

// Config is the complete, immutable-per-invocation configuration.
type Config struct {
	// StateFile is the durable watchdog state document.
	StateFile string `json:"state_file" yaml:"state_file"`

	// WebhookURL receives outbound notifications; empty disables the sink.
	WebhookURL string `json:"webhook_url" yaml:"webhook_url" validate:"omitempty,url"`

	Actions   policy.Actions  `json:"actions" yaml:"actions"`
	Container ContainerConfig `json:"container" yaml:"container"`
	Process   ProcessConfig   `json:"process" yaml:"process"`
	System    SystemConfig    `json:"system" yaml:"system"`
	Diagnosis DiagnosisConfig `json:"diagnosis" yaml:"diagnosis"`
	History   HistoryConfig   `json:"history" yaml:"history"`
}

// ContainerConfig drives the container health/restart monitor. The monitor
// is active only when HealthURL is set.
type ContainerConfig struct {
	HealthURL          string  `json:"health_url" yaml:"health_url" validate:"omitempty,url"`
	TimeoutSeconds     int     `json:"timeout_seconds" yaml:"timeout_seconds" validate:"gte=1,lte=300"`
	MaxResponseSeconds float64 `json:"max_response_seconds" yaml:"max_response_seconds" validate:"gt=0"`
	BackoffMinutes     int     `json:"backoff_minutes" yaml:"backoff_minutes" validate:"gte=0"`
	// SettleSeconds is the delay before the single post-restart
	// verification probe.
	SettleSeconds int    `json:"settle_seconds" yaml:"settle_seconds" validate:"gte=0,lte=300"`
	ComposeDir    string `json:"compose_dir" yaml:"compose_dir"`
	// Runtime selects the compose CLI: docker or podman.
	Runtime string `json:"runtime" yaml:"runtime" validate:"oneof=docker podman"`
	// Service optionally scopes restarts to one named compose service.
	Service string `json:"service" yaml:"service"`
}

// ProcessConfig drives the runaway/memory-hog detector.
type ProcessConfig struct {
	Enabled            bool     `json:"enabled" yaml:"enabled"`
	CPUThreshold       float64  `json:"cpu_threshold" yaml:"cpu_threshold" validate:"gt=0"`
	MaxRuntimeHours    float64  `json:"max_runtime_hours" yaml:"max_runtime_hours" validate:"gte=0"`
	MemoryThresholdMB  float64  `json:"memory_threshold_mb" yaml:"memory_threshold_mb" validate:"gt=0"`
	IgnorePatterns     []string `json:"ignore_patterns" yaml:"ignore_patterns"`
	SafeToKillPatterns []string `json:"safe_to_kill_patterns" yaml:"safe_to_kill_patterns"`
}

// SystemConfig drives swap-pressure and stuck-process detection.
type SystemConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	SwapThreshold    float64  `json:"swap_threshold" yaml:"swap_threshold" validate:"gte=0,lte=100"`
	SwapKillPatterns []string `json:"swap_kill_patterns" yaml:"swap_kill_patterns"`
	// RestartTarget names a compose service to restart under swap
	// pressure; the special value "stack" recreates the whole stack
	// (down + up). Empty disables the restart path.
	RestartTarget string `json:"restart_target" yaml:"restart_target"`
	CheckDState   bool   `json:"check_dstate" yaml:"check_dstate"`
}

// DiagnosisConfig controls the optional AI diagnosis collaborator.
type DiagnosisConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Model   string `json:"model" yaml:"model"`
}

// HistoryConfig controls the optional sqlite remediation journal.
type HistoryConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		StateFile: "/var/lib/hostwatch/state.json",
		Actions:   policy.Defaults(),
		Container: ContainerConfig{
			TimeoutSeconds:     10,
			MaxResponseSeconds: 5,
			BackoffMinutes:     60,
			SettleSeconds:      5,
			Runtime:            "docker",
		},
		Process: ProcessConfig{
			Enabled:           true,
			CPUThreshold:      90,
			MaxRuntimeHours:   2,
			MemoryThresholdMB: 2048,
			IgnorePatterns:    []string{"hostwatch"},
		},
		System: SystemConfig{
			Enabled:       true,
			SwapThreshold: 80,
		},
		Diagnosis: DiagnosisConfig{},
		History: HistoryConfig{
			Path: "/var/lib/hostwatch/history.db",
		},
	}
}

// LoadFile overlays a JSON or YAML config file onto cfg. Unknown fields are
// an error in both formats.
func LoadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	case ".json", "":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q (want .json, .yaml, or .yml)", ext)
	}
	return nil
}

// ApplyEnv overlays HOSTWATCH_* environment variables onto cfg. Unparseable
// values are ignored, matching the override semantics of the flag layer.
func ApplyEnv(cfg *Config) {
	setString := func(name string, dst *string) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			*dst = val
		}
	}
	setInt := func(name string, dst *int) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(name string, dst *float64) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				*dst = f
			}
		}
	}
	setBool := func(name string, dst *bool) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			*dst = parseBool(val)
		}
	}
	setMode := func(name string, dst *policy.Mode) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			*dst = policy.Mode(val)
		}
	}
	// Lists are comma-delimited and replace the configured list wholesale.
	// Kill patterns set this way still pass through validate.Patterns.
	setList := func(name string, dst *[]string) {
		if val := os.Getenv(EnvPrefix + name); val != "" {
			var out []string
			for _, p := range strings.Split(val, ",") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			*dst = out
		}
	}

	setString("STATE_FILE", &cfg.StateFile)
	setString("WEBHOOK_URL", &cfg.WebhookURL)

	setString("HEALTH_URL", &cfg.Container.HealthURL)
	setInt("TIMEOUT_SECONDS", &cfg.Container.TimeoutSeconds)
	setFloat("MAX_RESPONSE_SECONDS", &cfg.Container.MaxResponseSeconds)
	setInt("BACKOFF_MINUTES", &cfg.Container.BackoffMinutes)
	setInt("SETTLE_SECONDS", &cfg.Container.SettleSeconds)
	setString("COMPOSE_DIR", &cfg.Container.ComposeDir)
	setString("RUNTIME", &cfg.Container.Runtime)
	setString("SERVICE", &cfg.Container.Service)

	setBool("PROCESS_ENABLED", &cfg.Process.Enabled)
	setFloat("CPU_THRESHOLD", &cfg.Process.CPUThreshold)
	setFloat("MAX_RUNTIME_HOURS", &cfg.Process.MaxRuntimeHours)
	setFloat("MEMORY_THRESHOLD_MB", &cfg.Process.MemoryThresholdMB)
	setList("IGNORE_PATTERNS", &cfg.Process.IgnorePatterns)
	setList("SAFE_TO_KILL_PATTERNS", &cfg.Process.SafeToKillPatterns)

	setBool("SYSTEM_ENABLED", &cfg.System.Enabled)
	setFloat("SWAP_THRESHOLD", &cfg.System.SwapThreshold)
	setList("SWAP_KILL_PATTERNS", &cfg.System.SwapKillPatterns)
	setString("SWAP_RESTART_TARGET", &cfg.System.RestartTarget)
	setBool("CHECK_DSTATE", &cfg.System.CheckDState)

	setMode("ACTION_RESTART_CONTAINER", &cfg.Actions.RestartContainer)
	setMode("ACTION_KILL_RUNAWAY", &cfg.Actions.KillRunaway)
	setMode("ACTION_KILL_UNKNOWN", &cfg.Actions.KillUnknown)
	setMode("ACTION_KILL_FOR_SWAP", &cfg.Actions.KillForSwap)
	setMode("ACTION_RESTART_FOR_SWAP", &cfg.Actions.RestartForSwap)

	setBool("DIAGNOSIS_ENABLED", &cfg.Diagnosis.Enabled)
	setString("DIAGNOSIS_MODEL", &cfg.Diagnosis.Model)

	setBool("HISTORY_ENABLED", &cfg.History.Enabled)
	setString("HISTORY_PATH", &cfg.History.Path)
}

func parseBool(val string) bool {
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

// Validate normalizes and checks the merged configuration. Any error here
// is fatal: nothing runs with an unsafe pattern or path.
func (c *Config) Validate() error {
	c.Actions = c.Actions.WithDefaults()

	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Actions.Validate(); err != nil {
		return err
	}

	// Kill patterns are a safety boundary: only the lists that authorize
	// termination go through the deny-list validator. Ignore patterns are
	// deliberately allowed to be broad.
	if err := validate.Patterns(c.Process.SafeToKillPatterns, "process.safe_to_kill_patterns"); err != nil {
		return err
	}
	if err := validate.Patterns(c.System.SwapKillPatterns, "system.swap_kill_patterns"); err != nil {
		return err
	}

	if err := validate.Path(c.StateFile, "state_file"); err != nil {
		return err
	}
	if c.Container.ComposeDir != "" {
		if err := validate.Path(c.Container.ComposeDir, "container.compose_dir"); err != nil {
			return err
		}
	}
	if c.History.Enabled {
		if err := validate.Path(c.History.Path, "history.path"); err != nil {
			return err
		}
	}

	if c.Container.HealthURL != "" && c.Container.ComposeDir == "" {
		return fmt.Errorf("container.compose_dir is required when container.health_url is set")
	}
	if c.System.RestartTarget != "" && c.Container.ComposeDir == "" {
		return fmt.Errorf("container.compose_dir is required when system.restart_target is set")
	}
	return nil
}
