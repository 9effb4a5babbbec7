package commands

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/illumination-k/pathmirror/pkg/application/service"
	"github.com/illumination-k/pathmirror/pkg/config"
)

// NewProfileCommand creates the profile command group
func NewProfileCommand(syncService *service.SyncService) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "profile",
		Short:   "Manage sync profiles",
		Aliases: []string{"profiles"},
	}

	cmd.AddCommand(newProfileCreateCommand(syncService))
	cmd.AddCommand(newProfileListCommand(syncService))
	cmd.AddCommand(newProfileShowCommand(syncService))
	cmd.AddCommand(newProfileDeleteCommand(syncService))

	return cmd
}

func newProfileCreateCommand(syncService *service.SyncService) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> [path...]",
		Short: "Create a profile",
		Long: `Create a profile and register paths in the given order.

The first two paths are the source and destination of one-way directions.

Examples:
  pathmirror profile create notes ~/notes /mnt/backup/notes
  pathmirror profile create photos`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := syncService.CreateProfile(args[0], args[1:])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile '%s' created with %d path(s)\n", profile.Name, len(profile.Paths))
			return nil
		},
	}
}

func newProfileListCommand(syncService *service.SyncService) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List all profiles",
		Aliases: []string{"ls"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(outputFormat); err != nil {
				return err
			}

			profiles, err := syncService.ListProfiles()
			if err != nil {
				return fmt.Errorf("failed to list profiles: %w", err)
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case formatYAML:
				return outputYAML(out, profiles)
			case formatJSON:
				return outputJSON(out, profiles)
			}

			if len(profiles) == 0 {
				_, _ = fmt.Fprintln(out, "No profiles found")
				return nil
			}
			return outputProfileTable(out, profiles)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, yaml, json")

	return cmd
}

func outputProfileTable(out io.Writer, profiles []*config.ProfileConfig) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "NAME\tPATHS\tDIRECTION\tPOLICY\tINTERVAL\tAGE")

	for _, profile := range profiles {
		interval := "-"
		if profile.IntervalSeconds != 0 {
			interval = (time.Duration(profile.IntervalSeconds) * time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\n",
			profile.Name,
			len(profile.Paths),
			profile.Direction,
			profile.ConflictPolicy,
			interval,
			formatDuration(time.Since(profile.CreatedAt)),
		)
	}

	return nil
}

func newProfileShowCommand(syncService *service.SyncService) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := syncService.LoadProfile(args[0])
			if err != nil {
				return err
			}

			switch outputFormat {
			case formatJSON:
				return outputJSON(cmd.OutOrStdout(), profile)
			case formatYAML:
				return outputYAML(cmd.OutOrStdout(), profile)
			default:
				return fmt.Errorf("unknown output format %q (want yaml or json)", outputFormat)
			}
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", formatYAML, "Output format: yaml, json")

	return cmd
}

func newProfileDeleteCommand(syncService *service.SyncService) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a profile and its history",
		Long: `Delete a profile and its recorded history. Synced files are left alone.

Examples:
  pathmirror profile delete notes
  pathmirror profile delete notes --force`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			profile, err := syncService.LoadProfile(name)
			if err != nil {
				return err
			}

			if !force {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Delete profile '%s' (%d paths)? [y/N]: ", name, len(profile.Paths))

				reader := bufio.NewReader(cmd.InOrStdin())
				response, readErr := reader.ReadString('\n')
				if readErr != nil && readErr != io.EOF {
					return fmt.Errorf("failed to read confirmation: %w", readErr)
				}

				response = strings.TrimSpace(strings.ToLower(response))
				if response != "y" && response != "yes" {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Canceled")
					return nil
				}
			}

			if err := syncService.DeleteProfile(name); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✓ Profile '%s' deleted\n", name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}
