package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hostwatch/hostwatch/internal/state"
)

var dismissCmd = &cobra.Command{
	Use:   "dismiss <pid>",
	Short: "Suppress future alerts for a process",
	Long: `Mark a PID as known so subsequent checks stay quiet about it. The
suppression is recorded for every per-process issue type and lasts until
the PID leaves the process table, after which the registry entry is
pruned automatically.

Example:
  hostwatch dismiss 48213`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		pid := args[0]
		store := state.NewStore(cfg.StateFile, newLogger())
		if err := store.Dismiss(pid, time.Now()); err != nil {
			return fmt.Errorf("dismiss pid %s: %w", pid, err)
		}
		color.Green("✓ pid %s dismissed", pid)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dismissCmd)
}
