package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostwatch/hostwatch/internal/config"
)

// Exit codes: 0 when the host is clean, 1 when issues were found, 2 on a
// fatal error (bad config, unreadable state).
const (
	exitIssues = 1
	exitFatal  = 2
)

var (
	flagConfig     string
	flagStateFile  string
	flagWebhookURL string
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "hostwatch",
	Short: "Periodic host health monitor and remediation agent",
	Long: `hostwatch is a one-shot health check agent meant to run from cron or a
systemd timer. Each invocation probes container health, scans for runaway
and stuck processes, checks swap pressure, remediates what its action
policy allows, and persists what it saw for the next run.

Configuration merges four layers, highest precedence first:
command-line flags, HOSTWATCH_* environment variables, a config file
(--config, JSON or YAML), and built-in defaults.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().StringVar(&flagStateFile, "state-file", "", "override state file path")
	rootCmd.PersistentFlags().StringVar(&flagWebhookURL, "webhook-url", "", "override notification webhook URL")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "hostwatch: %v\n", err)
		os.Exit(exitFatal)
	}
}

// loadConfig builds the effective configuration for this invocation:
// defaults, then config file, then environment, then flags. The result is
// validated once and never mutated afterwards.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()

	if flagConfig != "" {
		if err := config.LoadFile(cfg, flagConfig); err != nil {
			return nil, err
		}
	}

	config.ApplyEnv(cfg)

	if cmd.Flags().Changed("state-file") {
		cfg.StateFile = flagStateFile
	}
	if cmd.Flags().Changed("webhook-url") {
		cfg.WebhookURL = flagWebhookURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
