package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/illumination-k/pathmirror/pkg/application/service"
	pathsync "github.com/illumination-k/pathmirror/pkg/sync"
	"github.com/illumination-k/pathmirror/pkg/sync/conflict"
	"github.com/illumination-k/pathmirror/pkg/sync/filter"
)

// NewSetCommand creates the set command group
func NewSetCommand(syncService *service.SyncService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Change profile settings",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "direction <profile> <bidirectional|source_to_dest|dest_to_source>",
		Short:     "Set the sync direction",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(pathsync.Bidirectional), string(pathsync.SourceToDest), string(pathsync.DestToSource)},
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := syncService.SetDirection(args[0], pathsync.Direction(args[1])); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Direction set to %s\n", args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "policy <profile> <newer|larger|ask>",
		Short: "Set the conflict policy for standalone files",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := syncService.SetPolicy(args[0], conflict.Policy(args[1])); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Conflict policy set to %s\n", args[1])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "interval <profile> <duration>",
		Short: "Set the watch interval (5s to 1h)",
		Long: `Set how often 'pathmirror watch' runs a pass without file changes.

The interval accepts Go durations ("90s", "5m") or plain seconds ("30").`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, err := parseInterval(args[1])
			if err != nil {
				return err
			}
			if _, err := syncService.SetInterval(args[0], interval); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Interval set to %s\n", interval)
			return nil
		},
	})

	cmd.AddCommand(newSetFilterCommand(syncService))

	return cmd
}

func parseInterval(s string) (time.Duration, error) {
	if seconds, err := strconv.Atoi(s); err == nil {
		return time.Duration(seconds) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	return d, nil
}

func newSetFilterCommand(syncService *service.SyncService) *cobra.Command {
	var (
		extensions    string
		minSize       string
		maxSize       string
		excludeHidden bool
		exclude       []string
		useGitignore  bool
	)

	cmd := &cobra.Command{
		Use:   "filter <profile>",
		Short: "Change the file filter",
		Long: `Change the file filter of a profile. Only the given flags change.

Examples:
  pathmirror set filter notes --ext md,txt
  pathmirror set filter photos --min-size 10KB --max-size 20MiB
  pathmirror set filter code --exclude node_modules/ --exclude '*.log' --gitignore
  pathmirror set filter notes --ext ""            # allow every extension`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := syncService.LoadProfile(args[0])
			if err != nil {
				return err
			}
			opts := profile.Filter.Clone()

			flags := cmd.Flags()
			if flags.Changed("ext") {
				if opts.Extensions, err = filter.ParseExtensions(extensions); err != nil {
					return err
				}
			}
			if flags.Changed("min-size") {
				if opts.MinSize, err = filter.ParseSize(minSize); err != nil {
					return err
				}
			}
			if flags.Changed("max-size") {
				if opts.MaxSize, err = filter.ParseSize(maxSize); err != nil {
					return err
				}
			}
			if flags.Changed("exclude-hidden") {
				opts.ExcludeHidden = excludeHidden
			}
			if flags.Changed("exclude") {
				opts.Exclude = exclude
			}
			if flags.Changed("gitignore") {
				opts.UseGitignore = useGitignore
			}

			if _, err := syncService.SetFilter(args[0], opts); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Filter: %s\n", opts.Describe())
			return nil
		},
	}

	cmd.Flags().StringVar(&extensions, "ext", "", "Comma-separated extensions to include (empty allows all)")
	cmd.Flags().StringVar(&minSize, "min-size", "", "Minimum file size, e.g. 512, 4KB, 1MiB (empty = unbounded)")
	cmd.Flags().StringVar(&maxSize, "max-size", "", "Maximum file size (empty = unbounded)")
	cmd.Flags().BoolVar(&excludeHidden, "exclude-hidden", true, "Skip files whose name starts with '.'")
	cmd.Flags().StringArrayVar(&exclude, "exclude", nil, "Gitignore-style pattern to exclude under directories (repeatable)")
	cmd.Flags().BoolVar(&useGitignore, "gitignore", false, "Honor .gitignore at the root of each directory")

	return cmd
}
