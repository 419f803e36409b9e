package cli

import (
	"errors"
	"fmt"
	"strings"

	"maaser/internal/core"
	"maaser/internal/services"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// payloadFlags are the definition fields shared by add and update.
type payloadFlags struct {
	Amount           string
	Currency         string
	Type             string
	Description      string
	Category         string
	Recipient        string
	Chomesh          bool
	OriginalAmount   string
	OriginalCurrency string
	ConversionRate   string
	ConversionDate   string
	RateSource       string
}

func (p *payloadFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&p.Amount, "amount", "", "amount per occurrence, e.g. 180.00")
	f.StringVar(&p.Currency, "currency", "ILS", "ISO currency code")
	f.StringVar(&p.Type, "type", "", "transaction type: income, exempt-income, donation, non_tithe_donation, expense, recognized-expense")
	f.StringVar(&p.Description, "description", "", "description copied to every entry")
	f.StringVar(&p.Category, "category", "", "category")
	f.StringVar(&p.Recipient, "recipient", "", "recipient of a donation")
	f.BoolVar(&p.Chomesh, "chomesh", false, "count the entry as chomesh")
	f.StringVar(&p.OriginalAmount, "original-amount", "", "amount before currency conversion")
	f.StringVar(&p.OriginalCurrency, "original-currency", "", "currency before conversion")
	f.StringVar(&p.ConversionRate, "rate", "", "conversion rate applied")
	f.StringVar(&p.ConversionDate, "conversion-date", "", "date of the conversion rate (YYYY-MM-DD)")
	f.StringVar(&p.RateSource, "rate-source", "", "rate source: auto or manual")
}

// apply writes every changed flag into p. With all set, unchanged flags that
// carry a default are applied too.
func (p *payloadFlags) apply(cmd *cobra.Command, dst *core.Payload, all bool) error {
	changed := func(name string) bool { return all || cmd.Flags().Changed(name) }

	if changed("amount") {
		amount, err := core.ParseAmount(p.Amount)
		if err != nil {
			return fmt.Errorf("--amount %q: %w", p.Amount, err)
		}
		dst.Amount = amount
	}
	if changed("currency") {
		dst.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
	}
	if changed("type") {
		dst.Type = core.TransactionType(p.Type)
	}
	if changed("description") {
		dst.Description = p.Description
	}
	if changed("category") {
		dst.Category = p.Category
	}
	if changed("recipient") {
		dst.Recipient = p.Recipient
	}
	if changed("chomesh") {
		dst.IsChomesh = p.Chomesh
	}
	if changed("original-amount") {
		dst.OriginalAmount = nil
		if p.OriginalAmount != "" {
			d, err := core.ParseAmount(p.OriginalAmount)
			if err != nil {
				return fmt.Errorf("--original-amount %q: %w", p.OriginalAmount, err)
			}
			dst.OriginalAmount = &d
		}
	}
	if changed("original-currency") {
		dst.OriginalCurrency = strings.ToUpper(strings.TrimSpace(p.OriginalCurrency))
	}
	if changed("rate") {
		dst.ConversionRate = nil
		if p.ConversionRate != "" {
			d, err := decimal.NewFromString(p.ConversionRate)
			if err != nil {
				return fmt.Errorf("--rate %q: %w", p.ConversionRate, err)
			}
			dst.ConversionRate = &d
		}
	}
	if changed("conversion-date") {
		dst.ConversionDate = core.Date{}
		if p.ConversionDate != "" {
			d, err := core.ParseDate(p.ConversionDate)
			if err != nil {
				return fmt.Errorf("--conversion-date: %w", err)
			}
			dst.ConversionDate = d
		}
	}
	if changed("rate-source") {
		dst.RateSource = p.RateSource
	}
	return nil
}

// NewObligationCommand creates the obligation command group.
func NewObligationCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "obligation",
		Aliases: []string{"obligations", "recurring"},
		Short:   "Manage recurring obligations",
	}
	cmd.AddCommand(newObligationAddCommand(rootOpts))
	cmd.AddCommand(newObligationListCommand(rootOpts))
	cmd.AddCommand(newObligationShowCommand(rootOpts))
	cmd.AddCommand(newObligationUpdateCommand(rootOpts))
	cmd.AddCommand(newObligationDeleteCommand(rootOpts))
	return cmd
}

func newObligationAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		payload   payloadFlags
		start     string
		frequency string
		day       int
		total     int
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a recurring obligation",
		Long: `Create an active obligation whose first occurrence is its start date.

Examples:
  maaser obligation add --start 2024-01-31 --amount 180 --type donation --recipient "Yeshiva"
  maaser obligation add --start 2024-01-01 --frequency weekly --total 10 --amount 50 --type income`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			startDate, err := core.ParseDate(start)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid --start", err)
			}
			in := services.NewObligation{
				StartDate:  startDate,
				Frequency:  core.Frequency(frequency),
				DayOfMonth: day,
			}
			if cmd.Flags().Changed("total") {
				in.TotalOccurrences = &total
			}
			if err := payload.apply(cmd, &in.Payload, true); err != nil {
				return WrapExitError(ExitCommandError, "invalid obligation", err)
			}

			repo, err := s.ledger(cmd)
			if err != nil {
				return err
			}
			ob, err := services.NewObligationService(repo).Add(cmd.Context(), in)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to create obligation", err)
			}
			return s.out.Success(NewObligationView(ob))
		},
	}

	payload.register(cmd)
	cmd.Flags().StringVar(&start, "start", "", "first occurrence date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&frequency, "frequency", string(core.Monthly), "monthly, yearly, weekly or daily")
	cmd.Flags().IntVar(&day, "day", 0, "intended day of month (default: the start date's day)")
	cmd.Flags().IntVar(&total, "total", 0, "number of occurrences before the obligation completes")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("type")

	return cmd
}

func newObligationListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List recurring obligations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			switch core.Status(status) {
			case "", core.StatusActive, core.StatusCompleted:
			default:
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --status %q: must be active or completed", status))
			}

			repo, err := s.ledger(cmd)
			if err != nil {
				return err
			}
			obs, err := services.NewObligationService(repo).List(cmd.Context(), core.Status(status))
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list obligations", err)
			}
			views := make(ObligationList, 0, len(obs))
			for _, ob := range obs {
				views = append(views, NewObligationView(ob))
			}
			return s.out.Success(views)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only list active or completed obligations")
	return cmd
}

func newObligationShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <id>",
		Short:         "Show one obligation and how many entries it generated",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			repo, err := s.ledger(cmd)
			if err != nil {
				return err
			}
			ob, err := services.NewObligationService(repo).Get(cmd.Context(), args[0])
			if err != nil {
				return lookupError(args[0], err)
			}
			count, err := repo.CountEntriesFor(cmd.Context(), ob.ID)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to count entries", err)
			}
			view := NewObligationView(ob)
			view.EntryCount = &count
			return s.out.Success(view)
		},
	}
}

func newObligationUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		payload   payloadFlags
		nextDue   string
		frequency string
		day       int
		total     int
		clearCap  bool
		status    string
	)

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change an obligation",
		Long: `Change the definition or schedule of an obligation. Only the flags given
are changed. Entries that were already generated are never modified, and a
completed obligation cannot be reactivated.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			repo, err := s.ledger(cmd)
			if err != nil {
				return err
			}
			svc := services.NewObligationService(repo)
			current, err := svc.Get(cmd.Context(), args[0])
			if err != nil {
				return lookupError(args[0], err)
			}

			var u services.ObligationUpdate
			flags := cmd.Flags()
			if payloadChanged(cmd) {
				p := current.Payload
				if err := payload.apply(cmd, &p, false); err != nil {
					return WrapExitError(ExitCommandError, "invalid obligation", err)
				}
				u.Payload = &p
			}
			if flags.Changed("next-due") {
				d, err := core.ParseDate(nextDue)
				if err != nil {
					return WrapExitError(ExitCommandError, "invalid --next-due", err)
				}
				u.NextDueDate = &d
			}
			if flags.Changed("frequency") {
				f := core.Frequency(frequency)
				u.Frequency = &f
			}
			if flags.Changed("day") {
				u.DayOfMonth = &day
			}
			if flags.Changed("total") {
				u.TotalOccurrences = &total
			}
			u.ClearCap = clearCap
			if flags.Changed("status") {
				st := core.Status(status)
				u.Status = &st
			}

			ob, err := svc.Update(cmd.Context(), args[0], u)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to update obligation", err)
			}
			return s.out.Success(NewObligationView(ob))
		},
	}

	payload.register(cmd)
	cmd.Flags().StringVar(&nextDue, "next-due", "", "reschedule the next occurrence (YYYY-MM-DD)")
	cmd.Flags().StringVar(&frequency, "frequency", "", "monthly, yearly, weekly or daily")
	cmd.Flags().IntVar(&day, "day", 0, "intended day of month")
	cmd.Flags().IntVar(&total, "total", 0, "cap the number of occurrences")
	cmd.Flags().BoolVar(&clearCap, "clear-total", false, "remove the occurrence cap")
	cmd.Flags().StringVar(&status, "status", "", "active or completed")
	cmd.MarkFlagsMutuallyExclusive("total", "clear-total")

	return cmd
}

func payloadChanged(cmd *cobra.Command) bool {
	for _, name := range []string{"amount", "currency", "type", "description", "category", "recipient",
		"chomesh", "original-amount", "original-currency", "rate", "conversion-date", "rate-source"} {
		if cmd.Flags().Changed(name) {
			return true
		}
	}
	return false
}

func newObligationDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an obligation; entries it generated are kept",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			repo, err := s.ledger(cmd)
			if err != nil {
				return err
			}
			if err := services.NewObligationService(repo).Delete(cmd.Context(), args[0]); err != nil {
				return lookupError(args[0], err)
			}
			return s.out.Success(Message{Message: "Deleted obligation " + args[0], ID: args[0]})
		},
	}
}

func lookupError(id string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		return WrapExitError(ExitCommandError, "no obligation "+id, core.ErrNotFound)
	}
	return WrapExitError(ExitCommandError, "failed to read obligation "+id, err)
}
