package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"maaser/internal/export"
	"maaser/internal/storage"

	"github.com/spf13/cobra"
)

// NewExportCommand creates the export command group.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ledger entries",
	}
	cmd.AddCommand(newExportXLSXCommand(rootOpts))
	return cmd
}

// ExportResult reports a written workbook.
type ExportResult struct {
	Path    string `json:"path"`
	Entries int    `json:"entries"`
}

func (r ExportResult) String() string {
	return fmt.Sprintf("Exported %d entries to %s", r.Entries, r.Path)
}

func newExportXLSXCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		flags entryFilterFlags
		out   string
	)

	cmd := &cobra.Command{
		Use:   "xlsx",
		Short: "Write ledger entries and per-type totals to an Excel workbook",
		Long: `Write ledger entries and per-type totals to an Excel workbook.

Examples:
  maaser export xlsx --out ledger-2024.xlsx --from 2024-01-01 --to 2024-12-31`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			filter, err := flags.filter()
			if err != nil {
				return err
			}
			repo, err := s.ledger(cmd)
			if err != nil {
				return err
			}
			entries, err := repo.ListEntries(cmd.Context(), filter)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list entries", err)
			}

			if dir := filepath.Dir(out); dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return WrapExitError(ExitCommandError, "failed to create output directory", err)
				}
			}
			f, err := os.Create(out)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create workbook", err)
			}
			if err := export.WriteXLSX(f, entries); err != nil {
				f.Close()
				return WrapExitError(ExitCommandError, "failed to write workbook", err)
			}
			if err := f.Close(); err != nil {
				return WrapExitError(ExitCommandError, "failed to write workbook", err)
			}
			return s.out.Success(ExportResult{Path: out, Entries: len(entries)})
		},
	}

	flags.register(cmd, storage.DefaultEntryLimit)
	cmd.Flags().StringVarP(&out, "out", "o", "", "workbook path (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
