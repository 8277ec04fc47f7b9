package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hostwatch/hostwatch/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted watchdog state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		store := state.NewStore(cfg.StateFile, newLogger())
		st, err := store.Load()
		if err != nil {
			return err
		}

		color.New(color.Bold).Printf("state: %s\n", store.Path())

		if st.LastCheckTime.IsZero() {
			fmt.Println("  last check:  never")
		} else {
			fmt.Printf("  last check:  %s (%s ago)\n",
				st.LastCheckTime.Format(time.RFC3339), time.Since(st.LastCheckTime).Round(time.Second))
		}

		if st.LastRestartTime == nil {
			fmt.Println("  last restart: never")
		} else {
			fmt.Printf("  last restart: %s\n", st.LastRestartTime.Format(time.RFC3339))
		}
		fmt.Printf("  restarts:    %d\n", st.RestartCount)
		fmt.Printf("  consecutive probe failures: %d\n", st.ConsecutiveFailures)

		if len(st.KnownIssues) == 0 {
			fmt.Println("  known issues: none")
			return nil
		}

		keys := make([]string, 0, len(st.KnownIssues))
		for k := range st.KnownIssues {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		fmt.Printf("  known issues: %d\n", len(keys))
		for _, k := range keys {
			fmt.Printf("    %s  first seen %s\n", k, st.KnownIssues[k].Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
