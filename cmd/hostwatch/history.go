package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hostwatch/hostwatch/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent issues and remediation actions from the journal",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if !cfg.History.Enabled {
			return fmt.Errorf("history journal is disabled (set history.enabled or HOSTWATCH_HISTORY_ENABLED)")
		}

		journal, err := history.Open(cfg.History.Path, "", newLogger())
		if err != nil {
			return err
		}
		defer journal.Close()

		ctx := cmd.Context()

		issues, err := journal.RecentIssues(ctx, limit)
		if err != nil {
			return err
		}
		color.New(color.Bold).Println("recent issues")
		if len(issues) == 0 {
			fmt.Println("  none")
		}
		for _, r := range issues {
			line := fmt.Sprintf("  %s  [%s/%s] %s", r.CreatedAt.Local().Format(time.DateTime), r.Type, r.Severity, r.Message)
			if r.PID != "" {
				line += fmt.Sprintf(" (pid %s)", r.PID)
			}
			fmt.Println(line)
		}

		actions, err := journal.RecentActions(ctx, limit)
		if err != nil {
			return err
		}
		color.New(color.Bold).Println("recent actions")
		if len(actions) == 0 {
			fmt.Println("  none")
		}
		for _, r := range actions {
			fmt.Printf("  %s  %s %s: %s\n", r.CreatedAt.Local().Format(time.DateTime), r.Action, r.Target, r.Outcome)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "maximum rows per section")
	rootCmd.AddCommand(historyCmd)
}
