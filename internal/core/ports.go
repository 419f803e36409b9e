package core

import (
	"context"
	"errors"
)

// ScheduleRepository selects due obligations and opens units of work.
type ScheduleRepository interface {
	ListActiveDue(ctx context.Context, today Date) ([]Obligation, error)
	Begin(ctx context.Context) (UnitOfWork, error)
}

// UnitOfWork groups the writes of one obligation's catch-up. Nothing is visible
// to other readers until Commit; Rollback after Commit is a no-op.
type UnitOfWork interface {
	GetObligation(ctx context.Context, id string) (Obligation, error)
	InsertEntry(ctx context.Context, e LedgerEntry) error
	Advance(ctx context.Context, id string, a ScheduleAdvance) error
	Commit() error
	Rollback() error
}

// ObligationStore is the CRUD surface over obligation definitions.
type ObligationStore interface {
	CreateObligation(ctx context.Context, o Obligation) error
	GetObligation(ctx context.Context, id string) (Obligation, error)
	ListObligations(ctx context.Context, status Status) ([]Obligation, error)
	UpdateObligation(ctx context.Context, o Obligation) error
	DeleteObligation(ctx context.Context, id string) error
}

// EntryFilter narrows ListEntries. Zero values mean no constraint.
type EntryFilter struct {
	ObligationID string
	From         Date
	To           Date
	Limit        int
}

// LedgerReader reads materialized entries.
type LedgerReader interface {
	GetEntry(ctx context.Context, id string) (LedgerEntry, error)
	ListEntries(ctx context.Context, f EntryFilter) ([]LedgerEntry, error)
}

// WithinUnit runs fn inside a unit of work and commits when fn succeeds.
// The unit is rolled back on every other exit path.
func WithinUnit(ctx context.Context, repo ScheduleRepository, fn func(UnitOfWork) error) (err error) {
	uow, err := repo.Begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := uow.Rollback(); rbErr != nil {
			err = errors.Join(err, rbErr)
		}
	}()
	if err := fn(uow); err != nil {
		return err
	}
	if err := uow.Commit(); err != nil {
		return errors.Join(ErrCommitFailed, err)
	}
	committed = true
	return nil
}
