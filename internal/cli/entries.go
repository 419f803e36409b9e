package cli

import (
	"maaser/internal/core"

	"github.com/spf13/cobra"
)

// entryFilterFlags narrow the entries read by entries list and export.
type entryFilterFlags struct {
	Obligation string
	From       string
	To         string
	Limit      int
}

func (f *entryFilterFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.Obligation, "obligation", "", "only entries generated by this obligation")
	cmd.Flags().StringVar(&f.From, "from", "", "first date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.To, "to", "", "last date, inclusive (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.Limit, "limit", defaultLimit, "maximum number of entries")
}

func (f *entryFilterFlags) filter() (core.EntryFilter, error) {
	out := core.EntryFilter{ObligationID: f.Obligation, Limit: f.Limit}
	var err error
	if f.From != "" {
		if out.From, err = core.ParseDate(f.From); err != nil {
			return core.EntryFilter{}, WrapExitError(ExitCommandError, "invalid --from", err)
		}
	}
	if f.To != "" {
		if out.To, err = core.ParseDate(f.To); err != nil {
			return core.EntryFilter{}, WrapExitError(ExitCommandError, "invalid --to", err)
		}
	}
	if !out.From.IsZero() && !out.To.IsZero() && out.To.Before(out.From) {
		return core.EntryFilter{}, NewExitError(ExitCommandError, "--to is before --from")
	}
	return out, nil
}

// NewEntriesCommand creates the entries command group.
func NewEntriesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "entries",
		Aliases: []string{"entry"},
		Short:   "Read ledger entries",
	}
	cmd.AddCommand(newEntriesListCommand(rootOpts))
	return cmd
}

func newEntriesListCommand(rootOpts *RootOptions) *cobra.Command {
	var flags entryFilterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger entries by date",
		Long: `List ledger entries in date order.

Examples:
  maaser entries list --from 2024-01-01 --to 2024-12-31
  maaser entries list --obligation 6f1c... --format json`,
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
			views := make(EntryList, 0, len(entries))
			for _, e := range entries {
				views = append(views, NewEntryView(e))
			}
			return s.out.Success(views)
		},
	}

	flags.register(cmd, 100)
	return cmd
}
