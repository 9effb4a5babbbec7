package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/illumination-k/pathmirror/pkg/application/service"
)

// NewPathCommand creates the path command group
func NewPathCommand(syncService *service.SyncService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Register and unregister paths of a profile",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <profile> <path>",
		Short: "Register an existing file or directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := syncService.AddPath(args[0], args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Added %s (%d paths)\n", profile.Paths[len(profile.Paths)-1], len(profile.Paths))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <profile> <path>",
		Short:   "Unregister a path",
		Aliases: []string{"rm"},
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := syncService.RemovePath(args[0], args[1])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %s (%d paths)\n", args[1], len(profile.Paths))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "list <profile>",
		Short:   "List registered paths in order",
		Aliases: []string{"ls"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := syncService.LoadProfile(args[0])
			if err != nil {
				return err
			}
			for i, path := range profile.Paths {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, path)
			}
			return nil
		},
	})

	return cmd
}
