package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"maaser/internal/amqp"
	"maaser/internal/core"
	"maaser/internal/log"
	"maaser/internal/services"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Today     string
	NoPublish bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Materialize every due recurring occurrence",
		Long: `Catch up every active obligation whose next due date is on or before today.

Each obligation is processed in its own transaction: all of its missed
occurrences are inserted and its schedule advanced, or nothing is.
A failing obligation does not stop the others.

When AMQP_URL is set, created entries are announced to the sheets worker.

Examples:
  maaser run
  maaser run --today 2024-04-15 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatchUp(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Today, "today", "", "calendar date to catch up to (YYYY-MM-DD, default today)")
	cmd.Flags().BoolVar(&opts.NoPublish, "no-publish", false, "do not announce created entries over AMQP")

	return cmd
}

func runCatchUp(opts *RunOptions, cmd *cobra.Command) error {
	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	loc, err := s.location()
	if err != nil {
		return err
	}
	repo, err := s.ledger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	procOpts := []services.ProcessorOption{
		services.WithLogger(s.logger),
		services.WithLocation(loc),
	}
	if publisher := s.publisher(ctx, opts.NoPublish); publisher != nil {
		defer publisher.Close()
		procOpts = append(procOpts, services.WithPublisher(publisher))
	}
	processor := services.NewRecurringProcessor(repo, procOpts...)

	today := processor.Today()
	if opts.Today != "" {
		today, err = core.ParseDate(opts.Today)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --today", err)
		}
	}

	summary, err := processor.ExecuteDue(ctx, today)
	if errors.Is(err, core.ErrSelectionFailed) {
		return WrapExitError(ExitCommandError, "catch-up run failed", err)
	}
	if outErr := s.out.Success(NewRunView(summary)); outErr != nil {
		return outErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "catch-up run interrupted", err)
	}
	if summary.DefinitionsFailed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d obligations failed", summary.DefinitionsFailed, summary.DefinitionsConsidered))
	}
	return nil
}

// publisher connects to the broker when one is configured. Connection
// failures only disable publishing: the sheets worker sweeps unexported entries.
func (s *session) publisher(ctx context.Context, disabled bool) *amqp.Client {
	if disabled || s.cfg.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(s.cfg.AMQPURL, s.cfg.AMQPExchange, s.cfg.AMQPQueue, amqp.WithLogger(s.logger))
	if err != nil {
		s.logger.WarnContext(ctx, "AMQP unavailable, entries will not be announced", log.FieldError, err)
		return nil
	}
	return client
}
