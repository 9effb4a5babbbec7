package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/illumination-k/pathmirror/pkg/application/service"
	"github.com/illumination-k/pathmirror/pkg/config"
	"github.com/illumination-k/pathmirror/pkg/history"
)

// NewSyncCommand creates the one-shot sync command
func NewSyncCommand(syncService *service.SyncService) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "sync <profile>",
		Short: "Run a single sync pass",
		Long: `Run one sync pass over the registered paths of a profile.

Under the ask conflict policy, conflicts are prompted on stdin unless --yes is
given, in which case they are skipped.

Examples:
  pathmirror sync notes
  pathmirror sync notes --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := service.RunOptions{}
			if !yes {
				opts.Prompt = newStdinPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			result, err := syncService.RunOnce(cmd.Context(), args[0], opts)
			if result != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", result.Status, result.Duration().Round(time.Millisecond))
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not prompt; skip conflicts under the ask policy")

	return cmd
}

// NewWatchCommand creates the watch command
func NewWatchCommand(syncService *service.SyncService) *cobra.Command {
	var (
		yes            bool
		interval       string
		debounceMillis int
	)

	cmd := &cobra.Command{
		Use:   "watch <profile>",
		Short: "Keep paths in sync until interrupted",
		Long: `Watch the registered directories of a profile and run a pass on every change
and on every interval tick. Stops on SIGINT or SIGTERM.

Examples:
  pathmirror watch notes
  pathmirror watch notes --interval 30s --yes`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := config.Overrides{DebounceMillis: debounceMillis}
			if interval != "" {
				d, err := parseInterval(interval)
				if err != nil {
					return err
				}
				overrides.IntervalSeconds = int(d.Seconds())
			}

			opts := service.RunOptions{Overrides: overrides}
			if !yes {
				opts.Prompt = newStdinPrompt(cmd.InOrStdin(), cmd.ErrOrStderr())
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Watching profile '%s' (Ctrl+C to stop)\n", args[0])
			summary, err := syncService.Watch(cmd.Context(), args[0], opts)
			if summary != nil {
				printWatchSummary(out, args[0], summary)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not prompt; skip conflicts under the ask policy")
	cmd.Flags().StringVar(&interval, "interval", "", "Override the profile interval for this run")
	cmd.Flags().IntVar(&debounceMillis, "debounce", 0, "Override the change debounce in milliseconds")

	return cmd
}

func printWatchSummary(out io.Writer, profile string, summary *service.WatchSummary) {
	_, _ = fmt.Fprintf(out, "Stopped watching '%s': %d pass(es), %d file(s) synced, %d failed\n",
		profile, len(summary.Passes), summary.Files(), summary.Failures())
	if summary.Last != nil {
		_, _ = fmt.Fprintf(out, "Last pass: %s at %s\n", summary.Last.Status, summary.Last.FinishedAt.Format(history.TimeFormat))
	}
}
