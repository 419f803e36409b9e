package cli

import (
	"fmt"

	"maaser/internal/storage"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger schema",
	}
	cmd.AddCommand(newMigrateUpCommand(rootOpts))
	cmd.AddCommand(newMigrateStatusCommand(rootOpts))
	return cmd
}

// SchemaStatus reports the applied migration version.
type SchemaStatus struct {
	Path    string `json:"path"`
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
}

func (s SchemaStatus) String() string {
	dirty := ""
	if s.Dirty {
		dirty = " (dirty)"
	}
	return fmt.Sprintf("%s: schema version %d%s", s.Path, s.Version, dirty)
}

func newMigrateUpCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "up",
		Short:         "Apply pending migrations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			// Opening the ledger applies pending migrations.
			if _, err := s.ledger(cmd); err != nil {
				return err
			}
			return schemaStatus(s)
		},
	}
}

func newMigrateStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the applied schema version",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return schemaStatus(s)
		},
	}
}

func schemaStatus(s *session) error {
	version, dirty, err := storage.SchemaVersion(s.cfg.SQLiteDBPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema version", err)
	}
	return s.out.Success(SchemaStatus{Path: s.cfg.SQLiteDBPath, Version: version, Dirty: dirty})
}
