package storage

import (
	"context"
	"database/sql"
)

const countTransactionsBySource = `-- name: CountTransactionsBySource :one
SELECT COUNT(*) FROM transactions WHERE source_recurring_id = ?
`

func (q *Queries) CountTransactionsBySource(ctx context.Context, sourceRecurringID sql.NullString) (int64, error) {
	row := q.db.QueryRowContext(ctx, countTransactionsBySource, sourceRecurringID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createTransaction = `-- name: CreateTransaction :exec
INSERT INTO transactions (
    id, date, amount, currency, description, type, category, is_chomesh,
    recipient, original_amount, original_currency, conversion_rate,
    conversion_date, rate_source, source_recurring_id, occurrence_number,
    created_at, updated_at
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
)
`

type CreateTransactionParams struct {
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
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		arg.ID,
		arg.Date,
		arg.Amount,
		arg.Currency,
		arg.Description,
		arg.Type,
		arg.Category,
		arg.IsChomesh,
		arg.Recipient,
		arg.OriginalAmount,
		arg.OriginalCurrency,
		arg.ConversionRate,
		arg.ConversionDate,
		arg.RateSource,
		arg.SourceRecurringID,
		arg.OccurrenceNumber,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const getTransaction = `-- name: GetTransaction :one
SELECT id, date, amount, currency, description, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, source_recurring_id, occurrence_number, created_at, updated_at, exported_at FROM transactions WHERE id = ?
`

func (q *Queries) GetTransaction(ctx context.Context, id string) (Transaction, error) {
	row := q.db.QueryRowContext(ctx, getTransaction, id)
	var i Transaction
	err := row.Scan(
		&i.ID,
		&i.Date,
		&i.Amount,
		&i.Currency,
		&i.Description,
		&i.Type,
		&i.Category,
		&i.IsChomesh,
		&i.Recipient,
		&i.OriginalAmount,
		&i.OriginalCurrency,
		&i.ConversionRate,
		&i.ConversionDate,
		&i.RateSource,
		&i.SourceRecurringID,
		&i.OccurrenceNumber,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.ExportedAt,
	)
	return i, err
}

const listPendingExportTransactions = `-- name: ListPendingExportTransactions :many
SELECT id, date, amount, currency, description, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, source_recurring_id, occurrence_number, created_at, updated_at, exported_at FROM transactions
WHERE exported_at IS NULL
ORDER BY created_at, date, id
LIMIT ?
`

func (q *Queries) ListPendingExportTransactions(ctx context.Context, limit int64) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listPendingExportTransactions, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

const listTransactions = `-- name: ListTransactions :many
SELECT id, date, amount, currency, description, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, source_recurring_id, occurrence_number, created_at, updated_at, exported_at FROM transactions
WHERE (?1 IS NULL OR source_recurring_id = ?1)
  AND (?2 IS NULL OR date >= ?2)
  AND (?3 IS NULL OR date <= ?3)
ORDER BY date, occurrence_number, id
LIMIT ?4
`

type ListTransactionsParams struct {
	SourceRecurringID sql.NullString
	FromDate          sql.NullString
	ToDate            sql.NullString
	Limit             int64
}

func (q *Queries) ListTransactions(ctx context.Context, arg ListTransactionsParams) ([]Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listTransactions,
		arg.SourceRecurringID,
		arg.FromDate,
		arg.ToDate,
		arg.Limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTransactions(rows)
}

func scanTransactions(rows *sql.Rows) ([]Transaction, error) {
	var items []Transaction
	for rows.Next() {
		var i Transaction
		if err := rows.Scan(
			&i.ID,
			&i.Date,
			&i.Amount,
			&i.Currency,
			&i.Description,
			&i.Type,
			&i.Category,
			&i.IsChomesh,
			&i.Recipient,
			&i.OriginalAmount,
			&i.OriginalCurrency,
			&i.ConversionRate,
			&i.ConversionDate,
			&i.RateSource,
			&i.SourceRecurringID,
			&i.OccurrenceNumber,
			&i.CreatedAt,
			&i.UpdatedAt,
			&i.ExportedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const markTransactionExported = `-- name: MarkTransactionExported :execresult
UPDATE transactions SET exported_at = ? WHERE id = ? AND exported_at IS NULL
`

type MarkTransactionExportedParams struct {
	ExportedAt sql.NullString
	ID         string
}

func (q *Queries) MarkTransactionExported(ctx context.Context, arg MarkTransactionExportedParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, markTransactionExported, arg.ExportedAt, arg.ID)
}
