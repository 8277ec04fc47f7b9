package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hostwatch/hostwatch/internal/config"
	"github.com/hostwatch/hostwatch/internal/diagnose"
	"github.com/hostwatch/hostwatch/internal/history"
	"github.com/hostwatch/hostwatch/internal/issue"
	"github.com/hostwatch/hostwatch/internal/monitor"
	"github.com/hostwatch/hostwatch/internal/notify"
	"github.com/hostwatch/hostwatch/internal/prompt"
	"github.com/hostwatch/hostwatch/internal/state"
	"github.com/hostwatch/hostwatch/internal/sysinfo"
	"github.com/hostwatch/hostwatch/internal/watchdog"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run all monitors once and remediate per the action policy",
	Long: `Run one check cycle: probe container health, scan the process table,
and check swap pressure. Actions configured as "auto" execute immediately,
"ask" actions execute only with --interactive approval, and everything
else is reported with remediation guidance.

Examples:
  # Full check, suitable for cron
  hostwatch check

  # Show what would happen without killing or restarting anything
  hostwatch check --dry-run

  # Run a single monitor
  hostwatch check --monitor process

  # Approve ask-mode actions at the terminal
  hostwatch check --interactive`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		interactive, _ := cmd.Flags().GetBool("interactive")
		only, _ := cmd.Flags().GetString("monitor")

		if only != "" && only != "container" && only != "process" && only != "system" {
			return fmt.Errorf("unknown monitor %q (want container, process, or system)", only)
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := newLogger()
		runID := strings.Split(uuid.New().String(), "-")[0]

		fx := &monitor.Effects{DryRun: dryRun}

		sinks := notify.Fanout{notify.NewConsole()}
		if cfg.WebhookURL != "" {
			sinks = append(sinks, notify.NewWebhook(cfg.WebhookURL, runID, log))
		}
		fx.Notify = sinks

		var advisor notify.Advisor
		if a := diagnose.New(diagnose.Config{
			Enabled: cfg.Diagnosis.Enabled,
			Model:   cfg.Diagnosis.Model,
		}, log); a != nil {
			advisor = a
		}
		fx.Guide = notify.NewGuidance(advisor)

		var journal *history.Journal
		if cfg.History.Enabled {
			journal, err = history.Open(cfg.History.Path, runID, log)
			if err != nil {
				log.Warn("history journal unavailable", "err", err)
			} else {
				fx.Journal = journal
			}
		}

		if interactive {
			fx.Confirm = prompt.New()
		}

		monitors := buildMonitors(cfg, only, fx, log)
		store := state.NewStore(cfg.StateFile, log)

		w := watchdog.New(store, monitors, runID, dryRun, log)
		report, err := w.Run(cmd.Context())
		// The journal must flush before any exit path below.
		journal.Close()
		if err != nil {
			return err
		}

		printReport(report, dryRun)
		if len(report.Issues) > 0 {
			os.Exit(exitIssues)
		}
		return nil
	},
}

func init() {
	checkCmd.Flags().Bool("dry-run", false, "report issues without killing, restarting, or saving state")
	checkCmd.Flags().BoolP("interactive", "i", false, "prompt for approval of ask-mode actions")
	checkCmd.Flags().String("monitor", "", "run only the named monitor (container, process, system)")
	rootCmd.AddCommand(checkCmd)
}

// buildMonitors wires the enabled monitors with real host collaborators.
// An empty only selects all of them.
func buildMonitors(cfg *config.Config, only string, fx *monitor.Effects, log *slog.Logger) []monitor.Monitor {
	want := func(name string) bool { return only == "" || only == name }

	var controller monitor.ServiceController
	if cfg.Container.ComposeDir != "" {
		controller = sysinfo.NewCompose(cfg.Container.ComposeDir, cfg.Container.Runtime, log)
	}
	snap := sysinfo.NewPS(log)
	killer := sysinfo.NewSignalKiller(log)

	var monitors []monitor.Monitor
	if want("container") && cfg.Container.HealthURL != "" {
		monitors = append(monitors,
			monitor.NewContainerMonitor(cfg.Container, cfg.Actions, sysinfo.NewHTTPProber(), controller, fx, log))
	}
	if want("process") && cfg.Process.Enabled {
		monitors = append(monitors,
			monitor.NewProcessMonitor(cfg.Process, cfg.Actions, snap, killer, fx, log))
	}
	if want("system") && cfg.System.Enabled {
		monitors = append(monitors,
			monitor.NewSystemMonitor(cfg.System, cfg.Actions, sysinfo.NewMeminfoSwap(), snap, killer, controller, fx, log))
	}
	return monitors
}

func printReport(r watchdog.Report, dryRun bool) {
	if len(r.Issues) == 0 {
		color.Green("✓ host healthy (run %s, %s)", r.RunID, r.Duration.Round(time.Millisecond))
		return
	}

	header := fmt.Sprintf("%d issue(s) found (run %s, %s)", len(r.Issues), r.RunID, r.Duration.Round(time.Millisecond))
	if dryRun {
		header += " [dry run]"
	}
	color.New(color.Bold).Println(header)

	for _, iss := range r.Issues {
		mark := color.YellowString("!")
		if iss.Severity == issue.SeverityCritical {
			mark = color.RedString("✗")
		}
		fmt.Printf("  %s [%s] %s\n", mark, iss.Type, iss.Message)
	}
}
