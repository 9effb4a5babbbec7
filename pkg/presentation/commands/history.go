package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/illumination-k/pathmirror/pkg/application/service"
	"github.com/illumination-k/pathmirror/pkg/history"
)

// NewHistoryCommand creates the history command group
func NewHistoryCommand(syncService *service.SyncService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded sync passes",
	}

	cmd.AddCommand(newHistoryListCommand(syncService))

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <profile>",
		Short: "Delete all recorded passes of a profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := syncService.ClearHistory(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✓ History cleared")
			return nil
		},
	})

	cmd.AddCommand(newHistoryExportCommand(syncService))

	return cmd
}

func newHistoryListCommand(syncService *service.SyncService) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:     "list <profile>",
		Short:   "List recorded passes, oldest first",
		Aliases: []string{"ls"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateFormat(outputFormat); err != nil {
				return err
			}

			records, err := syncService.History(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch outputFormat {
			case formatYAML:
				return outputYAML(out, records)
			case formatJSON:
				return outputJSON(out, records)
			}

			if len(records) == 0 {
				_, _ = fmt.Fprintln(out, "No history recorded")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			_, _ = fmt.Fprintln(w, "START\tEND\tPATHS\tFILES\tSTATUS")
			for _, r := range records {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					r.StartedAt.Format(history.TimeFormat),
					r.FinishedAt.Format(history.TimeFormat),
					len(r.Paths),
					r.FileCount,
					r.Status,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", formatTable, "Output format: table, yaml, json")

	return cmd
}

func newHistoryExportCommand(syncService *service.SyncService) *cobra.Command {
	var outputFile string

	cmd := &cobra.Command{
		Use:   "export <profile>",
		Short: "Export recorded passes as CSV",
		Long: `Export the history of a profile as CSV with the columns
start,end,pathCount,fileCount,status,paths.

Examples:
  pathmirror history export notes > notes.csv
  pathmirror history export notes -o notes.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputFile == "" {
				return syncService.ExportHistory(args[0], cmd.OutOrStdout())
			}

			// #nosec G304 -- user-provided output path
			f, err := os.OpenFile(outputFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outputFile, err)
			}
			if err := syncService.ExportHistory(args[0], f); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to write %s: %w", outputFile, err)
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "✓ History exported to %s\n", outputFile)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write CSV to this file instead of stdout")

	return cmd
}
