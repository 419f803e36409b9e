package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	Weekly  Frequency = "weekly"
	Daily   Frequency = "daily"
)

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

const (
	TypeIncome           TransactionType = "income"
	TypeExemptIncome     TransactionType = "exempt-income"
	TypeDonation         TransactionType = "donation"
	TypeNonTitheDonation TransactionType = "non_tithe_donation"
	TypeExpense          TransactionType = "expense"
	TypeRecognizedExp    TransactionType = "recognized-expense"
)

type (
	Frequency       string
	Status          string
	TransactionType string

	// Payload is copied verbatim from an obligation into every entry it generates.
	Payload struct {
		Amount      decimal.Decimal
		Currency    string          `validate:"required,len=3,alpha"`
		Description string          `validate:"max=200"`
		Category    string          `validate:"max=100"`
		Type        TransactionType `validate:"required"`
		IsChomesh   bool
		Recipient   string `validate:"max=200"`

		// Conversion metadata, set when the amount was converted from a foreign currency.
		OriginalAmount   *decimal.Decimal
		OriginalCurrency string `validate:"omitempty,len=3,alpha"`
		ConversionRate   *decimal.Decimal
		ConversionDate   Date
		RateSource       string `validate:"omitempty,oneof=auto manual"`
	}

	// Obligation is a recurring schedule definition.
	Obligation struct {
		ID               string `validate:"required"`
		StartDate        Date
		NextDueDate      Date
		Frequency        Frequency `validate:"required"`
		DayOfMonth       int       `validate:"min=1,max=31"`
		TotalOccurrences *int
		ExecutionCount   int    `validate:"min=0"`
		Status           Status `validate:"required,oneof=active completed"`
		Payload          Payload
		CreatedAt        time.Time
		UpdatedAt        time.Time
	}

	// LedgerEntry is a materialized transaction.
	LedgerEntry struct {
		ID                 string
		Date               Date
		SourceObligationID string
		OccurrenceNumber   int
		Payload            Payload
		CreatedAt          time.Time
		UpdatedAt          time.Time
		ExportedAt         *time.Time
	}

	// ScheduleAdvance is the schedule state written back after a catch-up.
	ScheduleAdvance struct {
		NextDueDate    Date
		ExecutionCount int
		Status         Status
		UpdatedAt      time.Time
	}
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidCurrency      = errors.New("invalid currency")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidStatus        = errors.New("invalid status")
	ErrInvalidSchedule      = errors.New("invalid schedule")
	ErrCapExceeded          = errors.New("execution count exceeds total occurrences")
	ErrReactivation         = errors.New("completed obligation cannot be reactivated")
	ErrNotFound             = errors.New("not found")
	ErrUnsupportedFrequency = errors.New("unsupported frequency")
	ErrDateArithmetic       = errors.New("date arithmetic failure")
	ErrSelectionFailed      = errors.New("cannot read due obligations")
	ErrStorageRead          = errors.New("storage read failed")
	ErrStorageWrite         = errors.New("storage write failed")
	ErrCommitFailed         = errors.New("commit failed")
)

var validate = validator.New()

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeIncome, TypeExemptIncome, TypeDonation, TypeNonTitheDonation, TypeExpense, TypeRecognizedExp:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusCompleted }

func (p Payload) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("payload: %w", err)
	}
	if !p.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if strings.ToUpper(p.Currency) != p.Currency {
		return ErrInvalidCurrency
	}
	if !p.Type.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidType, p.Type)
	}
	if p.OriginalAmount != nil && !p.OriginalAmount.IsPositive() {
		return fmt.Errorf("original amount: %w", ErrInvalidAmount)
	}
	if p.ConversionRate != nil && !p.ConversionRate.IsPositive() {
		return errors.New("conversion rate must be positive")
	}
	return nil
}

// Validate checks the obligation's fields and the schedule invariants.
func (o Obligation) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("obligation: %w", err)
	}
	if err := o.StartDate.Validate(); err != nil {
		return fmt.Errorf("%w: start date: %v", ErrInvalidSchedule, err)
	}
	if err := o.NextDueDate.Validate(); err != nil {
		return fmt.Errorf("%w: next due date: %v", ErrInvalidSchedule, err)
	}
	if o.NextDueDate.Before(o.StartDate) {
		return fmt.Errorf("%w: next due date before start date", ErrInvalidSchedule)
	}
	if o.TotalOccurrences != nil {
		if *o.TotalOccurrences < 1 {
			return fmt.Errorf("%w: total occurrences must be at least 1", ErrInvalidSchedule)
		}
		if o.ExecutionCount > *o.TotalOccurrences {
			return ErrCapExceeded
		}
		if o.ExecutionCount == *o.TotalOccurrences && o.Status != StatusCompleted {
			return fmt.Errorf("%w: obligation at its cap must be completed", ErrInvalidStatus)
		}
	}
	return o.Payload.Validate()
}

// CapReached reports whether the obligation has materialized all of its occurrences.
func (o Obligation) CapReached() bool {
	return o.TotalOccurrences != nil && o.ExecutionCount >= *o.TotalOccurrences
}

// IsDue reports whether the obligation should be picked up by a run for today.
func (o Obligation) IsDue(today Date) bool {
	return o.Status == StatusActive && !o.NextDueDate.After(today)
}

// Advance returns the obligation with the schedule state applied.
func (o Obligation) Advance(a ScheduleAdvance) Obligation {
	o.NextDueDate = a.NextDueDate
	o.ExecutionCount = a.ExecutionCount
	o.Status = a.Status
	o.UpdatedAt = a.UpdatedAt
	return o
}

// EntryFor builds the ledger entry for one occurrence. The payload is a snapshot.
func (o Obligation) EntryFor(id string, date Date, occurrence int, now time.Time) LedgerEntry {
	return LedgerEntry{
		ID:                 id,
		Date:               date,
		SourceObligationID: o.ID,
		OccurrenceNumber:   occurrence,
		Payload:            o.Payload.Clone(),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

// Clone copies the payload including its pointer fields.
func (p Payload) Clone() Payload {
	out := p
	if p.OriginalAmount != nil {
		v := *p.OriginalAmount
		out.OriginalAmount = &v
	}
	if p.ConversionRate != nil {
		v := *p.ConversionRate
		out.ConversionRate = &v
	}
	return out
}
