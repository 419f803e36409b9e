package storage

import (
	"database/sql"
)

type RecurringTransaction struct {
	ID               string
	Status           string
	StartDate        string
	NextDueDate      string
	Frequency        string
	DayOfMonth       int64
	TotalOccurrences sql.NullInt64
	ExecutionCount   int64
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
	CreatedAt        string
	UpdatedAt        string
}

type Transaction struct {
	ID                string
	Date              string
	Amount            string
	Currency          string
	Description       string
	Type              string
	Category          string
	IsChomesh         int64
	Recipient         string
	OriginalAmount    sql.NullString
	OriginalCurrency  sql.NullString
	ConversionRate    sql.NullString
	ConversionDate    sql.NullString
	RateSource        sql.NullString
	SourceRecurringID sql.NullString
	OccurrenceNumber  sql.NullInt64
	CreatedAt         string
	UpdatedAt         string
	ExportedAt        sql.NullString
}
