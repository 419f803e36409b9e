package sheets

import (
	"context"

	"maaser/internal/core"
)

// Ports for outbound adapters.
type (
	// EntryWriter mirrors a committed ledger entry to an external sheet.
	EntryWriter interface {
		Append(ctx context.Context, e core.LedgerEntry) (rowRef string, err error)
	}

	// EntryLister reads back mirrored rows for a given year.
	EntryLister interface {
		ListEntries(ctx context.Context, year int) ([]Row, error)
	}
)

// Row is one mirrored ledger line as it appears in the sheet.
type Row struct {
	Date        string
	Type        string
	Description string
	Category    string
	Amount      string
	Currency    string
	Recipient   string
	Chomesh     bool
	EntryID     string
	Occurrence  int
	Obligation  string
}

// Header is the column order used by every writer.
var Header = []string{
	"Date", "Type", "Description", "Category", "Amount", "Currency",
	"Recipient", "Chomesh", "Entry ID", "Occurrence", "Obligation ID",
}

// RowFor renders an entry into its sheet representation.
func RowFor(e core.LedgerEntry) Row {
	return Row{
		Date:        e.Date.String(),
		Type:        string(e.Payload.Type),
		Description: e.Payload.Description,
		Category:    e.Payload.Category,
		Amount:      core.FormatAmount(e.Payload.Amount),
		Currency:    e.Payload.Currency,
		Recipient:   e.Payload.Recipient,
		Chomesh:     e.Payload.IsChomesh,
		EntryID:     e.ID,
		Occurrence:  e.OccurrenceNumber,
		Obligation:  e.SourceObligationID,
	}
}

// Values returns the row as sheet cell values in Header order.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.Date, r.Type, r.Description, r.Category, r.Amount, r.Currency,
		r.Recipient, r.Chomesh, r.EntryID, r.Occurrence, r.Obligation,
	}
}
