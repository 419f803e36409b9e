package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"maaser/internal/core"
	"maaser/internal/services"
)

// ObligationView is the CLI representation of an obligation.
type ObligationView struct {
	ID               string  `json:"id"`
	Type             string  `json:"type"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	Description      string  `json:"description,omitempty"`
	Category         string  `json:"category,omitempty"`
	Recipient        string  `json:"recipient,omitempty"`
	IsChomesh        bool    `json:"is_chomesh"`
	Frequency        string  `json:"frequency"`
	DayOfMonth       int     `json:"day_of_month"`
	StartDate        string  `json:"start_date"`
	NextDueDate      string  `json:"next_due_date"`
	TotalOccurrences *int    `json:"total_occurrences,omitempty"`
	ExecutionCount   int     `json:"execution_count"`
	Status           string  `json:"status"`
	OriginalAmount   *string `json:"original_amount,omitempty"`
	OriginalCurrency string  `json:"original_currency,omitempty"`
	ConversionRate   *string `json:"conversion_rate,omitempty"`
	ConversionDate   string  `json:"conversion_date,omitempty"`
	RateSource       string  `json:"rate_source,omitempty"`
	EntryCount       *int    `json:"entry_count,omitempty"`
}

func NewObligationView(o core.Obligation) ObligationView {
	v := ObligationView{
		ID:               o.ID,
		Type:             string(o.Payload.Type),
		Amount:           core.FormatAmount(o.Payload.Amount),
		Currency:         o.Payload.Currency,
		Description:      o.Payload.Description,
		Category:         o.Payload.Category,
		Recipient:        o.Payload.Recipient,
		IsChomesh:        o.Payload.IsChomesh,
		Frequency:        string(o.Frequency),
		DayOfMonth:       o.DayOfMonth,
		StartDate:        o.StartDate.String(),
		NextDueDate:      o.NextDueDate.String(),
		TotalOccurrences: o.TotalOccurrences,
		ExecutionCount:   o.ExecutionCount,
		Status:           string(o.Status),
		OriginalCurrency: o.Payload.OriginalCurrency,
		ConversionDate:   o.Payload.ConversionDate.String(),
		RateSource:       o.Payload.RateSource,
	}
	if o.Payload.OriginalAmount != nil {
		s := o.Payload.OriginalAmount.String()
		v.OriginalAmount = &s
	}
	if o.Payload.ConversionRate != nil {
		s := o.Payload.ConversionRate.String()
		v.ConversionRate = &s
	}
	return v
}

func (v ObligationView) RenderText(w io.Writer) error {
	total := "unbounded"
	if v.TotalOccurrences != nil {
		total = strconv.Itoa(*v.TotalOccurrences)
	}
	rows := [][]string{
		{"ID", v.ID},
		{"Type", v.Type},
		{"Amount", v.Amount + " " + v.Currency},
		{"Description", v.Description},
		{"Category", v.Category},
		{"Recipient", v.Recipient},
		{"Chomesh", strconv.FormatBool(v.IsChomesh)},
		{"Frequency", v.Frequency},
		{"Day of month", strconv.Itoa(v.DayOfMonth)},
		{"Start date", v.StartDate},
		{"Next due", v.NextDueDate},
		{"Occurrences", fmt.Sprintf("%d of %s", v.ExecutionCount, total)},
		{"Status", v.Status},
	}
	if v.OriginalAmount != nil {
		rows = append(rows, []string{"Original", *v.OriginalAmount + " " + v.OriginalCurrency})
	}
	if v.EntryCount != nil {
		rows = append(rows, []string{"Entries", strconv.Itoa(*v.EntryCount)})
	}
	return writeTable(w, []string{"FIELD", "VALUE"}, rows)
}

// ObligationList renders as a table in text mode.
type ObligationList []ObligationView

func (l ObligationList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No recurring obligations.")
		return err
	}
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		count := strconv.Itoa(v.ExecutionCount)
		if v.TotalOccurrences != nil {
			count += "/" + strconv.Itoa(*v.TotalOccurrences)
		}
		rows = append(rows, []string{v.ID, v.Type, v.Amount + " " + v.Currency, v.Frequency, v.NextDueDate, count, v.Status, v.Description})
	}
	return writeTable(w, []string{"ID", "TYPE", "AMOUNT", "FREQUENCY", "NEXT DUE", "COUNT", "STATUS", "DESCRIPTION"}, rows)
}

// EntryView is the CLI representation of a ledger entry.
type EntryView struct {
	ID               string  `json:"id"`
	Date             string  `json:"date"`
	Type             string  `json:"type"`
	Amount           string  `json:"amount"`
	Currency         string  `json:"currency"`
	Description      string  `json:"description,omitempty"`
	Category         string  `json:"category,omitempty"`
	Recipient        string  `json:"recipient,omitempty"`
	IsChomesh        bool    `json:"is_chomesh"`
	ObligationID     string  `json:"source_recurring_id,omitempty"`
	OccurrenceNumber int     `json:"occurrence_number,omitempty"`
	ExportedAt       *string `json:"exported_at,omitempty"`
}

func NewEntryView(e core.LedgerEntry) EntryView {
	v := EntryView{
		ID:               e.ID,
		Date:             e.Date.String(),
		Type:             string(e.Payload.Type),
		Amount:           core.FormatAmount(e.Payload.Amount),
		Currency:         e.Payload.Currency,
		Description:      e.Payload.Description,
		Category:         e.Payload.Category,
		Recipient:        e.Payload.Recipient,
		IsChomesh:        e.Payload.IsChomesh,
		ObligationID:     e.SourceObligationID,
		OccurrenceNumber: e.OccurrenceNumber,
	}
	if e.ExportedAt != nil {
		s := e.ExportedAt.UTC().Format(time.RFC3339)
		v.ExportedAt = &s
	}
	return v
}

type EntryList []EntryView

func (l EntryList) RenderText(w io.Writer) error {
	if len(l) == 0 {
		_, err := fmt.Fprintln(w, "No entries.")
		return err
	}
	rows := make([][]string, 0, len(l))
	for _, v := range l {
		occ := ""
		if v.OccurrenceNumber > 0 {
			occ = "#" + strconv.Itoa(v.OccurrenceNumber)
		}
		rows = append(rows, []string{v.Date, v.Type, v.Amount + " " + v.Currency, v.ObligationID, occ, v.Description})
	}
	return writeTable(w, []string{"DATE", "TYPE", "AMOUNT", "OBLIGATION", "OCC", "DESCRIPTION"}, rows)
}

// RunView reports one catch-up run.
type RunView struct {
	Today       string        `json:"today"`
	Considered  int           `json:"considered"`
	Processed   int           `json:"processed"`
	Skipped     int           `json:"skipped"`
	Failed      int           `json:"failed"`
	Completed   int           `json:"completed"`
	Entries     int           `json:"entries_created"`
	ElapsedMs   int64         `json:"elapsed_ms"`
	Summary     string        `json:"summary"`
	Obligations []OutcomeView `json:"obligations"`
}

type OutcomeView struct {
	ObligationID   string   `json:"obligation_id"`
	Status         string   `json:"status"`
	Occurrences    []string `json:"occurrences,omitempty"`
	NextDueDate    string   `json:"next_due_date,omitempty"`
	ExecutionCount int      `json:"execution_count,omitempty"`
	Schedule       string   `json:"schedule_status,omitempty"`
	FailureKind    string   `json:"failure_kind,omitempty"`
	Error          string   `json:"error,omitempty"`
}

func NewRunView(s services.RunSummary) RunView {
	v := RunView{
		Today:       s.Today.String(),
		Considered:  s.DefinitionsConsidered,
		Processed:   s.DefinitionsProcessed,
		Skipped:     s.DefinitionsSkipped,
		Failed:      s.DefinitionsFailed,
		Completed:   s.DefinitionsCompleted,
		Entries:     s.ProcessedOccurrences,
		ElapsedMs:   s.Elapsed.Milliseconds(),
		Summary:     s.String(),
		Obligations: make([]OutcomeView, 0, len(s.Outcomes)),
	}
	for _, o := range s.Outcomes {
		ov := OutcomeView{
			ObligationID:   o.ObligationID,
			Status:         string(o.Status),
			NextDueDate:    o.NextDueDate.String(),
			ExecutionCount: o.ExecutionCount,
			Schedule:       string(o.Schedule),
			FailureKind:    string(o.Kind),
		}
		for _, d := range o.Occurrences {
			ov.Occurrences = append(ov.Occurrences, d.String())
		}
		if o.Err != nil {
			ov.Error = o.Err.Error()
		}
		v.Obligations = append(v.Obligations, ov)
	}
	return v
}

func (v RunView) RenderText(w io.Writer) error {
	if _, err := fmt.Fprintln(w, v.Summary); err != nil {
		return err
	}
	if len(v.Obligations) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(v.Obligations))
	for _, o := range v.Obligations {
		detail := o.Error
		if detail == "" {
			detail = fmt.Sprintf("%d new, next due %s", len(o.Occurrences), o.NextDueDate)
		}
		rows = append(rows, []string{o.ObligationID, o.Status, o.FailureKind, detail})
	}
	return writeTable(w, []string{"OBLIGATION", "OUTCOME", "KIND", "DETAIL"}, rows)
}

// Message is a one-line confirmation.
type Message struct {
	Message string `json:"message"`
	ID      string `json:"id,omitempty"`
}

func (m Message) String() string { return m.Message }
