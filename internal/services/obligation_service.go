package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"maaser/internal/core"

	"github.com/google/uuid"
)

// NewObligation is the input of ObligationService.Add.
type NewObligation struct {
	StartDate        core.Date
	Frequency        core.Frequency
	DayOfMonth       int // defaults to the start date's day
	TotalOccurrences *int
	Payload          core.Payload
}

// ObligationUpdate carries the fields to change; nil fields are left as they are.
type ObligationUpdate struct {
	Payload          *core.Payload
	NextDueDate      *core.Date
	Frequency        *core.Frequency
	DayOfMonth       *int
	TotalOccurrences *int
	ClearCap         bool
	Status           *core.Status
}

// ObligationService manages recurring obligation definitions.
type ObligationService struct {
	store core.ObligationStore
	now   func() time.Time
	newID func() string
}

func NewObligationService(store core.ObligationStore) *ObligationService {
	return &ObligationService{
		store: store,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Add creates an active obligation whose first occurrence is its start date.
func (s *ObligationService) Add(ctx context.Context, in NewObligation) (core.Obligation, error) {
	if _, err := GetCadence(in.Frequency); err != nil {
		return core.Obligation{}, err
	}
	day := in.DayOfMonth
	if day == 0 {
		day = in.StartDate.Day()
	}
	now := s.now().UTC()
	ob := core.Obligation{
		ID:               s.newID(),
		StartDate:        in.StartDate,
		NextDueDate:      in.StartDate,
		Frequency:        in.Frequency,
		DayOfMonth:       day,
		TotalOccurrences: in.TotalOccurrences,
		ExecutionCount:   0,
		Status:           core.StatusActive,
		Payload:          in.Payload,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := ob.Validate(); err != nil {
		return core.Obligation{}, fmt.Errorf("validate obligation: %w", err)
	}
	if err := s.store.CreateObligation(ctx, ob); err != nil {
		return core.Obligation{}, fmt.Errorf("save obligation: %w", err)
	}

	slog.InfoContext(ctx, "Created recurring obligation",
		"obligation_id", ob.ID,
		"frequency", ob.Frequency,
		"start_date", ob.StartDate.String())
	return ob, nil
}

func (s *ObligationService) Get(ctx context.Context, id string) (core.Obligation, error) {
	return s.store.GetObligation(ctx, id)
}

// List returns obligations with the given status, or all of them when status is empty.
func (s *ObligationService) List(ctx context.Context, status core.Status) ([]core.Obligation, error) {
	return s.store.ListObligations(ctx, status)
}

// Update applies u to the obligation. Payload changes never touch entries that
// were already generated. A completed obligation is never reactivated, and an
// obligation whose cap equals its execution count becomes completed.
func (s *ObligationService) Update(ctx context.Context, id string, u ObligationUpdate) (core.Obligation, error) {
	ob, err := s.store.GetObligation(ctx, id)
	if err != nil {
		return core.Obligation{}, fmt.Errorf("get obligation: %w", err)
	}

	if u.Payload != nil {
		ob.Payload = *u.Payload
	}
	if u.Frequency != nil {
		if _, err := GetCadence(*u.Frequency); err != nil {
			return core.Obligation{}, err
		}
		ob.Frequency = *u.Frequency
	}
	if u.DayOfMonth != nil {
		ob.DayOfMonth = *u.DayOfMonth
	}
	if u.NextDueDate != nil {
		if ob.Status.Terminal() {
			return core.Obligation{}, fmt.Errorf("%w: cannot reschedule a completed obligation", core.ErrInvalidSchedule)
		}
		ob.NextDueDate = *u.NextDueDate
	}
	if u.ClearCap {
		if ob.Status.Terminal() {
			return core.Obligation{}, core.ErrReactivation
		}
		ob.TotalOccurrences = nil
	}
	if u.TotalOccurrences != nil {
		total := *u.TotalOccurrences
		if ob.ExecutionCount > total {
			return core.Obligation{}, fmt.Errorf("%w: %d entries already generated", core.ErrCapExceeded, ob.ExecutionCount)
		}
		if ob.Status.Terminal() && total != ob.ExecutionCount {
			return core.Obligation{}, core.ErrReactivation
		}
		ob.TotalOccurrences = &total
	}
	if u.Status != nil {
		if ob.Status.Terminal() && *u.Status != core.StatusCompleted {
			return core.Obligation{}, core.ErrReactivation
		}
		ob.Status = *u.Status
	}
	if ob.CapReached() {
		ob.Status = core.StatusCompleted
	}

	ob.UpdatedAt = s.now().UTC()
	if err := ob.Validate(); err != nil {
		return core.Obligation{}, fmt.Errorf("validate obligation: %w", err)
	}
	if err := s.store.UpdateObligation(ctx, ob); err != nil {
		return core.Obligation{}, fmt.Errorf("update obligation: %w", err)
	}
	return ob, nil
}

// Delete removes the definition. Entries it generated are kept.
func (s *ObligationService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteObligation(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete obligation: %w", err)
	}
	slog.InfoContext(ctx, "Deleted recurring obligation", "obligation_id", id)
	return nil
}
