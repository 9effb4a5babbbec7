package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illumination-k/pathmirror/internal/version"
	"github.com/illumination-k/pathmirror/pkg/application"
	"github.com/illumination-k/pathmirror/pkg/config"
	"github.com/illumination-k/pathmirror/pkg/logging"
)

// NewRootCommand creates the root command for pathmirror with dependency injection
func NewRootCommand(app *application.App) *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:   "pathmirror",
		Short: "Keep files in sync across local paths",
		Long: `pathmirror keeps a set of registered files and directories in sync.

Paths are grouped into profiles. Each profile has a direction (bidirectional or
one-way), a conflict policy for standalone files, and a file filter. Run a single
pass with 'pathmirror sync' or keep paths in sync with 'pathmirror watch'.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			global, err := app.SyncService.LoadGlobalConfig()
			if err != nil {
				return err
			}
			_, err = logging.Setup(config.CoalesceString(logLevel, global.LogLevel))
			return err
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(NewProfileCommand(app.SyncService))
	cmd.AddCommand(NewPathCommand(app.SyncService))
	cmd.AddCommand(NewSetCommand(app.SyncService))
	cmd.AddCommand(NewSyncCommand(app.SyncService))
	cmd.AddCommand(NewWatchCommand(app.SyncService))
	cmd.AddCommand(NewHistoryCommand(app.SyncService))
	cmd.AddCommand(newVersionCommand())

	return cmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "pathmirror version %s\n", version.Version)
		},
	}
}
