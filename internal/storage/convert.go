package storage

import (
	"database/sql"
	"fmt"
	"time"

	"maaser/internal/core"

	"github.com/shopspring/decimal"
)

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullDate(d core.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func parseNullDecimal(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", ns.String, err)
	}
	return &d, nil
}

func parseNullDate(ns sql.NullString) (core.Date, error) {
	if !ns.Valid || ns.String == "" {
		return core.Date{}, nil
	}
	return core.ParseDate(ns.String)
}

// payloadColumns holds the payload as stored in both tables.
type payloadColumns struct {
	Description      string
	Amount           string
	Currency         string
	Type             string
	Category         string
	IsChomesh        int64
	Recipient        string
	OriginalAmount   sql.NullString
	OriginalCurrency sql.NullString
	ConversionRate   sql.NullString
	ConversionDate   sql.NullString
	RateSource       sql.NullString
}

func toPayloadColumns(p core.Payload) payloadColumns {
	return payloadColumns{
		Description:      p.Description,
		Amount:           p.Amount.String(),
		Currency:         p.Currency,
		Type:             string(p.Type),
		Category:         p.Category,
		IsChomesh:        boolInt(p.IsChomesh),
		Recipient:        p.Recipient,
		OriginalAmount:   nullDecimal(p.OriginalAmount),
		OriginalCurrency: nullString(p.OriginalCurrency),
		ConversionRate:   nullDecimal(p.ConversionRate),
		ConversionDate:   nullDate(p.ConversionDate),
		RateSource:       nullString(p.RateSource),
	}
}

func (c payloadColumns) toPayload() (core.Payload, error) {
	amount, err := decimal.NewFromString(c.Amount)
	if err != nil {
		return core.Payload{}, fmt.Errorf("parse amount %q: %w", c.Amount, err)
	}
	original, err := parseNullDecimal(c.OriginalAmount)
	if err != nil {
		return core.Payload{}, err
	}
	rate, err := parseNullDecimal(c.ConversionRate)
	if err != nil {
		return core.Payload{}, err
	}
	convDate, err := parseNullDate(c.ConversionDate)
	if err != nil {
		return core.Payload{}, err
	}
	return core.Payload{
		Amount:           amount,
		Currency:         c.Currency,
		Description:      c.Description,
		Category:         c.Category,
		Type:             core.TransactionType(c.Type),
		IsChomesh:        c.IsChomesh != 0,
		Recipient:        c.Recipient,
		OriginalAmount:   original,
		OriginalCurrency: c.OriginalCurrency.String,
		ConversionRate:   rate,
		ConversionDate:   convDate,
		RateSource:       c.RateSource.String,
	}, nil
}

func obligationFromRow(r RecurringTransaction) (core.Obligation, error) {
	start, err := core.ParseDate(r.StartDate)
	if err != nil {
		return core.Obligation{}, err
	}
	next, err := core.ParseDate(r.NextDueDate)
	if err != nil {
		return core.Obligation{}, err
	}
	payload, err := payloadColumns{
		Description:      r.Description,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Type:             r.Type,
		Category:         r.Category,
		IsChomesh:        r.IsChomesh,
		Recipient:        r.Recipient,
		OriginalAmount:   r.OriginalAmount,
		OriginalCurrency: r.OriginalCurrency,
		ConversionRate:   r.ConversionRate,
		ConversionDate:   r.ConversionDate,
		RateSource:       r.RateSource,
	}.toPayload()
	if err != nil {
		return core.Obligation{}, err
	}
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return core.Obligation{}, err
	}
	updatedAt, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return core.Obligation{}, err
	}

	var total *int
	if r.TotalOccurrences.Valid {
		v := int(r.TotalOccurrences.Int64)
		total = &v
	}

	return core.Obligation{
		ID:               r.ID,
		StartDate:        start,
		NextDueDate:      next,
		Frequency:        core.Frequency(r.Frequency),
		DayOfMonth:       int(r.DayOfMonth),
		TotalOccurrences: total,
		ExecutionCount:   int(r.ExecutionCount),
		Status:           core.Status(r.Status),
		Payload:          payload,
		CreatedAt:        createdAt,
		UpdatedAt:        updatedAt,
	}, nil
}

func entryFromRow(r Transaction) (core.LedgerEntry, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	payload, err := payloadColumns{
		Description:      r.Description,
		Amount:           r.Amount,
		Currency:         r.Currency,
		Type:             r.Type,
		Category:         r.Category,
		IsChomesh:        r.IsChomesh,
		Recipient:        r.Recipient,
		OriginalAmount:   r.OriginalAmount,
		OriginalCurrency: r.OriginalCurrency,
		ConversionRate:   r.ConversionRate,
		ConversionDate:   r.ConversionDate,
		RateSource:       r.RateSource,
	}.toPayload()
	if err != nil {
		return core.LedgerEntry{}, err
	}
	createdAt, err := parseTimestamp(r.CreatedAt)
	if err != nil {
		return core.LedgerEntry{}, err
	}
	updatedAt, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return core.LedgerEntry{}, err
	}

	e := core.LedgerEntry{
		ID:                 r.ID,
		Date:               date,
		SourceObligationID: r.SourceRecurringID.String,
		OccurrenceNumber:   int(r.OccurrenceNumber.Int64),
		Payload:            payload,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}
	if r.ExportedAt.Valid {
		at, err := parseTimestamp(r.ExportedAt.String)
		if err != nil {
			return core.LedgerEntry{}, err
		}
		e.ExportedAt = &at
	}
	return e, nil
}

func createEntryParams(e core.LedgerEntry) CreateTransactionParams {
	p := toPayloadColumns(e.Payload)
	occurrence := sql.NullInt64{}
	if e.OccurrenceNumber > 0 {
		occurrence = sql.NullInt64{Int64: int64(e.OccurrenceNumber), Valid: true}
	}
	return CreateTransactionParams{
		ID:                e.ID,
		Date:              e.Date.String(),
		Amount:            p.Amount,
		Currency:          p.Currency,
		Description:       p.Description,
		Type:              p.Type,
		Category:          p.Category,
		IsChomesh:         p.IsChomesh,
		Recipient:         p.Recipient,
		OriginalAmount:    p.OriginalAmount,
		OriginalCurrency:  p.OriginalCurrency,
		ConversionRate:    p.ConversionRate,
		ConversionDate:    p.ConversionDate,
		RateSource:        p.RateSource,
		SourceRecurringID: nullString(e.SourceObligationID),
		OccurrenceNumber:  occurrence,
		CreatedAt:         formatTimestamp(e.CreatedAt),
		UpdatedAt:         formatTimestamp(e.UpdatedAt),
	}
}

func createObligationParams(o core.Obligation) CreateRecurringTransactionParams {
	p := toPayloadColumns(o.Payload)
	return CreateRecurringTransactionParams{
		ID:               o.ID,
		Status:           string(o.Status),
		StartDate:        o.StartDate.String(),
		NextDueDate:      o.NextDueDate.String(),
		Frequency:        string(o.Frequency),
		DayOfMonth:       int64(o.DayOfMonth),
		TotalOccurrences: nullInt(o.TotalOccurrences),
		ExecutionCount:   int64(o.ExecutionCount),
		Description:      p.Description,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Type:             p.Type,
		Category:         p.Category,
		IsChomesh:        p.IsChomesh,
		Recipient:        p.Recipient,
		OriginalAmount:   p.OriginalAmount,
		OriginalCurrency: p.OriginalCurrency,
		ConversionRate:   p.ConversionRate,
		ConversionDate:   p.ConversionDate,
		RateSource:       p.RateSource,
		CreatedAt:        formatTimestamp(o.CreatedAt),
		UpdatedAt:        formatTimestamp(o.UpdatedAt),
	}
}

func updateObligationParams(o core.Obligation) UpdateRecurringTransactionParams {
	p := toPayloadColumns(o.Payload)
	return UpdateRecurringTransactionParams{
		Status:           string(o.Status),
		NextDueDate:      o.NextDueDate.String(),
		Frequency:        string(o.Frequency),
		DayOfMonth:       int64(o.DayOfMonth),
		TotalOccurrences: nullInt(o.TotalOccurrences),
		Description:      p.Description,
		Amount:           p.Amount,
		Currency:         p.Currency,
		Type:             p.Type,
		Category:         p.Category,
		IsChomesh:        p.IsChomesh,
		Recipient:        p.Recipient,
		OriginalAmount:   p.OriginalAmount,
		OriginalCurrency: p.OriginalCurrency,
		ConversionRate:   p.ConversionRate,
		ConversionDate:   p.ConversionDate,
		RateSource:       p.RateSource,
		UpdatedAt:        formatTimestamp(o.UpdatedAt),
		ID:               o.ID,
	}
}
