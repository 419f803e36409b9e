package services

import (
	"context"
	"errors"
	"fmt"
	"maaser/internal/core"
	"maaser/internal/log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// EntryPublisher announces ledger entries once they are committed.
type EntryPublisher interface {
	PublishEntryCreated(ctx context.Context, e core.LedgerEntry) error
}

type OutcomeStatus string

const (
	OutcomeProcessed OutcomeStatus = "processed"
	OutcomeSkipped   OutcomeStatus = "skipped"
	OutcomeFailed    OutcomeStatus = "failed"
)

// FailureKind classifies why an obligation was not processed.
type FailureKind string

const (
	FailureUnsupportedFrequency FailureKind = "unsupported_frequency"
	FailureDateArithmetic       FailureKind = "date_arithmetic"
	FailureStorageRead          FailureKind = "storage_read"
	FailureStorageWrite         FailureKind = "storage_write"
	FailureCommit               FailureKind = "commit"
)

// ObligationOutcome is the result of catching up a single obligation.
type ObligationOutcome struct {
	ObligationID   string
	Status         OutcomeStatus
	Occurrences    []core.Date
	EntryIDs       []string
	NextDueDate    core.Date
	ExecutionCount int
	Schedule       core.Status
	Kind           FailureKind
	Err            error
}

// RunSummary aggregates the outcomes of one catch-up run.
type RunSummary struct {
	Today                 core.Date
	DefinitionsConsidered int
	DefinitionsProcessed  int
	DefinitionsFailed     int
	DefinitionsSkipped    int
	DefinitionsCompleted  int
	ProcessedOccurrences  int
	Elapsed               time.Duration
	Outcomes              []ObligationOutcome
}

func (s *RunSummary) record(o ObligationOutcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case OutcomeProcessed:
		s.DefinitionsProcessed++
		s.ProcessedOccurrences += len(o.Occurrences)
		if o.Schedule == core.StatusCompleted {
			s.DefinitionsCompleted++
		}
	case OutcomeSkipped:
		s.DefinitionsSkipped++
	case OutcomeFailed:
		s.DefinitionsFailed++
	}
}

// Failures returns the outcomes of obligations that were rolled back.
func (s RunSummary) Failures() []ObligationOutcome {
	var out []ObligationOutcome
	for _, o := range s.Outcomes {
		if o.Status == OutcomeFailed {
			out = append(out, o)
		}
	}
	return out
}

func (s RunSummary) String() string {
	return fmt.Sprintf("Successfully processed %d out of %d due recurring obligations in %s (%d entries created, %d failed)",
		s.DefinitionsProcessed, s.DefinitionsConsidered, s.Elapsed, s.ProcessedOccurrences, s.DefinitionsFailed)
}

// ProcessorOption configures a RecurringProcessor.
type ProcessorOption func(*RecurringProcessor)

// WithPublisher announces created entries after each commit.
func WithPublisher(p EntryPublisher) ProcessorOption {
	return func(rp *RecurringProcessor) { rp.publisher = p }
}

func WithLogger(l *log.Logger) ProcessorOption {
	return func(rp *RecurringProcessor) { rp.logger = l.WithComponent(log.ComponentRecurring) }
}

// WithLocation sets the time zone that defines "today" for ExecuteDueToday.
func WithLocation(loc *time.Location) ProcessorOption {
	return func(rp *RecurringProcessor) { rp.location = loc }
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(rp *RecurringProcessor) { rp.now = now }
}

func WithIDGenerator(newID func() string) ProcessorOption {
	return func(rp *RecurringProcessor) { rp.newID = newID }
}

// RecurringProcessor materializes every missed occurrence of the due
// obligations, one obligation per unit of work.
//
// Runs are serialized: the store has a single writer. Concurrent calls for the
// same day share one run.
type RecurringProcessor struct {
	repo      core.ScheduleRepository
	publisher EntryPublisher
	logger    *log.Logger
	location  *time.Location
	now       func() time.Time
	newID     func() string

	mu    sync.Mutex
	group singleflight.Group
}

// NewRecurringProcessor creates a new catch-up processor
func NewRecurringProcessor(repo core.ScheduleRepository, opts ...ProcessorOption) *RecurringProcessor {
	p := &RecurringProcessor{
		repo:     repo,
		logger:   log.FromContext(context.Background()).WithComponent(log.ComponentRecurring),
		location: time.Local,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Today returns the current calendar date in the processor's location.
func (p *RecurringProcessor) Today() core.Date {
	return core.DateOf(p.now().In(p.location))
}

// ExecuteDueToday runs the catch-up for the current local calendar date.
func (p *RecurringProcessor) ExecuteDueToday(ctx context.Context) (RunSummary, error) {
	return p.ExecuteDue(ctx, p.Today())
}

// ExecuteDue materializes every occurrence due on or before today.
//
// Only a failure to read the due set fails the run. Per-obligation failures
// are rolled back, logged, and reported in the summary.
func (p *RecurringProcessor) ExecuteDue(ctx context.Context, today core.Date) (RunSummary, error) {
	if p.repo == nil {
		return RunSummary{}, fmt.Errorf("processor not properly initialized")
	}

	for {
		v, err, shared := p.group.Do(today.String(), func() (any, error) {
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.run(ctx, today)
		})
		summary, _ := v.(RunSummary)
		if !shared {
			return summary, err
		}
		// The run we joined was cut short by its caller's context, not ours.
		if isContextErr(err) && ctx.Err() == nil {
			p.logger.DebugContext(ctx, "Joined catch-up run was cancelled, running again", log.FieldToday, today.String())
			continue
		}
		p.logger.DebugContext(ctx, "Joined in-flight catch-up run", log.FieldToday, today.String())
		return summary, err
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (p *RecurringProcessor) run(ctx context.Context, today core.Date) (RunSummary, error) {
	start := p.now()
	summary := RunSummary{Today: today}
	logger := p.logger.With(log.FieldRunID, uuid.NewString())

	due, err := p.repo.ListActiveDue(ctx, today)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to read due obligations",
			log.FieldToday, today.String(),
			log.FieldError, err)
		return summary, fmt.Errorf("%w: %w", core.ErrSelectionFailed, err)
	}
	summary.DefinitionsConsidered = len(due)

	logger.InfoContext(ctx, "Processing due recurring obligations",
		"total_due", len(due),
		log.FieldToday, today.String())

	for _, ob := range due {
		if err := ctx.Err(); err != nil {
			summary.Elapsed = p.now().Sub(start)
			logger.WarnContext(ctx, "Catch-up run interrupted",
				"remaining", len(due)-len(summary.Outcomes),
				log.FieldError, err)
			return summary, err
		}

		outcome := p.processObligation(ctx, logger, ob.ID, today)
		summary.record(outcome)
	}

	summary.Elapsed = p.now().Sub(start)
	logger.InfoContext(ctx, summary.String(),
		"processed", summary.DefinitionsProcessed,
		"failed", summary.DefinitionsFailed,
		"skipped", summary.DefinitionsSkipped,
		"completed", summary.DefinitionsCompleted,
		"entries", summary.ProcessedOccurrences,
		log.FieldDuration, summary.Elapsed.Milliseconds())

	return summary, nil
}

// processObligation catches up one obligation inside its own unit of work.
func (p *RecurringProcessor) processObligation(ctx context.Context, logger *log.Logger, id string, today core.Date) ObligationOutcome {
	outcome := ObligationOutcome{ObligationID: id}
	var (
		entries   []core.LedgerEntry
		frequency core.Frequency
	)

	err := core.WithinUnit(ctx, p.repo, func(uow core.UnitOfWork) error {
		// Re-read inside the unit: the row may have changed since selection.
		ob, err := uow.GetObligation(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			outcome.Status = OutcomeSkipped
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: get obligation: %w", core.ErrStorageRead, err)
		}
		if !ob.IsDue(today) {
			outcome.Status = OutcomeSkipped
			outcome.NextDueDate = ob.NextDueDate
			outcome.ExecutionCount = ob.ExecutionCount
			outcome.Schedule = ob.Status
			return nil
		}

		frequency = ob.Frequency
		plan, err := PlanCatchUp(ob, today)
		if err != nil {
			return err
		}

		now := p.now().UTC()
		for _, occ := range plan.Occurrences {
			entry := ob.EntryFor(p.newID(), occ.Date, occ.Number, now)
			if err := uow.InsertEntry(ctx, entry); err != nil {
				return fmt.Errorf("%w: insert occurrence %d on %s: %w", core.ErrStorageWrite, occ.Number, occ.Date, err)
			}
			entries = append(entries, entry)
		}

		adv := plan.Advance()
		adv.UpdatedAt = now
		if err := uow.Advance(ctx, id, adv); err != nil {
			return fmt.Errorf("%w: advance schedule: %w", core.ErrStorageWrite, err)
		}

		outcome.Status = OutcomeProcessed
		outcome.NextDueDate = adv.NextDueDate
		outcome.ExecutionCount = adv.ExecutionCount
		outcome.Schedule = adv.Status
		return nil
	})
	if err != nil {
		outcome = ObligationOutcome{
			ObligationID: id,
			Status:       OutcomeFailed,
			Kind:         classifyFailure(err),
			Err:          err,
		}
		logger.ErrorContext(ctx, "Failed to process recurring obligation, rolled back",
			log.FieldObligationID, id,
			log.FieldErrorKind, string(outcome.Kind),
			log.FieldError, err)
		return outcome
	}

	if outcome.Status == OutcomeSkipped {
		logger.InfoContext(ctx, "Obligation no longer due, skipped",
			log.FieldObligationID, id,
			log.FieldNextDueDate, outcome.NextDueDate.String(),
			log.FieldStatus, string(outcome.Schedule))
		return outcome
	}

	for _, e := range entries {
		outcome.Occurrences = append(outcome.Occurrences, e.Date)
		outcome.EntryIDs = append(outcome.EntryIDs, e.ID)
		logger.DebugContext(ctx, "Materialized occurrence",
			log.NewFields().WithEntry(e.ID, e.Date.String(), e.OccurrenceNumber).ToSlice()...)
	}

	fields := log.NewFields().
		WithObligation(id, string(frequency), outcome.NextDueDate.String(), outcome.ExecutionCount).
		WithOperation(log.OpCatchUp)
	logger.InfoContext(ctx, "Caught up recurring obligation",
		append(fields.ToSlice(),
			"occurrences", len(entries),
			log.FieldStatus, string(outcome.Schedule))...)

	p.publish(ctx, logger, entries)
	return outcome
}

// publish announces committed entries. Failures never affect the run.
func (p *RecurringProcessor) publish(ctx context.Context, logger *log.Logger, entries []core.LedgerEntry) {
	if p.publisher == nil {
		return
	}
	for _, e := range entries {
		if err := p.publisher.PublishEntryCreated(ctx, e); err != nil {
			logger.WarnContext(ctx, "Failed to publish entry event",
				log.FieldEntryID, e.ID,
				log.FieldObligationID, e.SourceObligationID,
				log.FieldError, err)
		}
	}
}

func classifyFailure(err error) FailureKind {
	switch {
	case errors.Is(err, core.ErrUnsupportedFrequency):
		return FailureUnsupportedFrequency
	case errors.Is(err, core.ErrDateArithmetic):
		return FailureDateArithmetic
	case errors.Is(err, core.ErrCommitFailed):
		return FailureCommit
	case errors.Is(err, core.ErrStorageRead):
		return FailureStorageRead
	default:
		return FailureStorageWrite
	}
}
