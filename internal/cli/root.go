package cli

import (
	"fmt"
	"slices"
	"time"

	"maaser/internal/config"
	"maaser/internal/log"
	"maaser/internal/storage"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // overrides SQLITE_DB_PATH
	Timezone string // overrides LEDGER_TIMEZONE
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the maaser CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "maaser",
		Short: "Recurring tithe ledger",
		Long: `maaser keeps a tithe ledger and materializes recurring obligations.

Every run creates one ledger entry per missed occurrence of each due
obligation, advances its schedule, and completes it once its cap is reached.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite ledger (default $SQLITE_DB_PATH)")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "tz", "", "time zone that defines today (default $LEDGER_TIMEZONE)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewObligationCommand(opts))
	cmd.AddCommand(NewEntriesCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

// session is what a command needs once flags are parsed: configuration, a
// logger, the output formatter, and lazily the ledger.
type session struct {
	opts   *RootOptions
	cfg    *config.Config
	logger *log.Logger
	out    *OutputFormatter
	repo   *storage.SQLiteRepository
}

func newSession(opts *RootOptions, cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if opts.Database != "" {
		cfg.SQLiteDBPath = opts.Database
	}
	if opts.Timezone != "" {
		cfg.LedgerTimezone = opts.Timezone
	}

	level := "warn"
	if opts.Verbose {
		level = "debug"
	}
	logger, err := SetupLogger(level, cfg.LogFormat, cmd.ErrOrStderr(), log.ComponentCLI)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid log configuration", err)
	}

	return &session{
		opts:   opts,
		cfg:    cfg,
		logger: logger,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}, nil
}

func (s *session) ledger(cmd *cobra.Command) (*storage.SQLiteRepository, error) {
	if s.repo != nil {
		return s.repo, nil
	}
	if s.cfg.SQLiteDBPath == "" {
		return nil, NewExitError(ExitCommandError, "no ledger path: set --db or SQLITE_DB_PATH")
	}
	repo, err := InitSQLite(cmd.Context(), s.logger, s.cfg.SQLiteDBPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	s.out.VerboseLog("ledger: %s", s.cfg.SQLiteDBPath)
	s.repo = repo
	return repo, nil
}

func (s *session) location() (*time.Location, error) {
	loc, err := s.cfg.Location()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid time zone", err)
	}
	return loc, nil
}

func (s *session) Close() {
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			s.logger.Warn("Failed to close ledger", log.FieldError, err)
		}
	}
}
