package storage

import (
	"context"
	"database/sql"
)

const advanceRecurringTransaction = `-- name: AdvanceRecurringTransaction :execresult
UPDATE recurring_transactions
SET next_due_date = ?, execution_count = ?, status = ?, updated_at = ?
WHERE id = ? AND status = 'active'
`

type AdvanceRecurringTransactionParams struct {
	NextDueDate    string
	ExecutionCount int64
	Status         string
	UpdatedAt      string
	ID             string
}

func (q *Queries) AdvanceRecurringTransaction(ctx context.Context, arg AdvanceRecurringTransactionParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, advanceRecurringTransaction,
		arg.NextDueDate,
		arg.ExecutionCount,
		arg.Status,
		arg.UpdatedAt,
		arg.ID,
	)
}

const createRecurringTransaction = `-- name: CreateRecurringTransaction :exec
INSERT INTO recurring_transactions (
    id, status, start_date, next_due_date, frequency, day_of_month,
    total_occurrences, execution_count, description, amount, currency, type,
    category, is_chomesh, recipient, original_amount, original_currency,
    conversion_rate, conversion_date, rate_source, created_at, updated_at
) VALUES (
    ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?
)
`

type CreateRecurringTransactionParams struct {
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

func (q *Queries) CreateRecurringTransaction(ctx context.Context, arg CreateRecurringTransactionParams) error {
	_, err := q.db.ExecContext(ctx, createRecurringTransaction,
		arg.ID,
		arg.Status,
		arg.StartDate,
		arg.NextDueDate,
		arg.Frequency,
		arg.DayOfMonth,
		arg.TotalOccurrences,
		arg.ExecutionCount,
		arg.Description,
		arg.Amount,
		arg.Currency,
		arg.Type,
		arg.Category,
		arg.IsChomesh,
		arg.Recipient,
		arg.OriginalAmount,
		arg.OriginalCurrency,
		arg.ConversionRate,
		arg.ConversionDate,
		arg.RateSource,
		arg.CreatedAt,
		arg.UpdatedAt,
	)
	return err
}

const deleteRecurringTransaction = `-- name: DeleteRecurringTransaction :execresult
DELETE FROM recurring_transactions WHERE id = ?
`

func (q *Queries) DeleteRecurringTransaction(ctx context.Context, id string) (sql.Result, error) {
	return q.db.ExecContext(ctx, deleteRecurringTransaction, id)
}

const getRecurringTransaction = `-- name: GetRecurringTransaction :one
SELECT id, status, start_date, next_due_date, frequency, day_of_month, total_occurrences, execution_count, description, amount, currency, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, created_at, updated_at FROM recurring_transactions WHERE id = ?
`

func (q *Queries) GetRecurringTransaction(ctx context.Context, id string) (RecurringTransaction, error) {
	row := q.db.QueryRowContext(ctx, getRecurringTransaction, id)
	var i RecurringTransaction
	err := row.Scan(
		&i.ID,
		&i.Status,
		&i.StartDate,
		&i.NextDueDate,
		&i.Frequency,
		&i.DayOfMonth,
		&i.TotalOccurrences,
		&i.ExecutionCount,
		&i.Description,
		&i.Amount,
		&i.Currency,
		&i.Type,
		&i.Category,
		&i.IsChomesh,
		&i.Recipient,
		&i.OriginalAmount,
		&i.OriginalCurrency,
		&i.ConversionRate,
		&i.ConversionDate,
		&i.RateSource,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listActiveDueRecurringTransactions = `-- name: ListActiveDueRecurringTransactions :many
SELECT id, status, start_date, next_due_date, frequency, day_of_month, total_occurrences, execution_count, description, amount, currency, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, created_at, updated_at FROM recurring_transactions
WHERE status = 'active' AND next_due_date <= ?
ORDER BY next_due_date, id
`

func (q *Queries) ListActiveDueRecurringTransactions(ctx context.Context, nextDueDate string) ([]RecurringTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listActiveDueRecurringTransactions, nextDueDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecurringTransactions(rows)
}

const listRecurringTransactions = `-- name: ListRecurringTransactions :many
SELECT id, status, start_date, next_due_date, frequency, day_of_month, total_occurrences, execution_count, description, amount, currency, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, created_at, updated_at FROM recurring_transactions
ORDER BY next_due_date, id
`

func (q *Queries) ListRecurringTransactions(ctx context.Context) ([]RecurringTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listRecurringTransactions)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecurringTransactions(rows)
}

const listRecurringTransactionsByStatus = `-- name: ListRecurringTransactionsByStatus :many
SELECT id, status, start_date, next_due_date, frequency, day_of_month, total_occurrences, execution_count, description, amount, currency, type, category, is_chomesh, recipient, original_amount, original_currency, conversion_rate, conversion_date, rate_source, created_at, updated_at FROM recurring_transactions
WHERE status = ?
ORDER BY next_due_date, id
`

func (q *Queries) ListRecurringTransactionsByStatus(ctx context.Context, status string) ([]RecurringTransaction, error) {
	rows, err := q.db.QueryContext(ctx, listRecurringTransactionsByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecurringTransactions(rows)
}

func scanRecurringTransactions(rows *sql.Rows) ([]RecurringTransaction, error) {
	var items []RecurringTransaction
	for rows.Next() {
		var i RecurringTransaction
		if err := rows.Scan(
			&i.ID,
			&i.Status,
			&i.StartDate,
			&i.NextDueDate,
			&i.Frequency,
			&i.DayOfMonth,
			&i.TotalOccurrences,
			&i.ExecutionCount,
			&i.Description,
			&i.Amount,
			&i.Currency,
			&i.Type,
			&i.Category,
			&i.IsChomesh,
			&i.Recipient,
			&i.OriginalAmount,
			&i.OriginalCurrency,
			&i.ConversionRate,
			&i.ConversionDate,
			&i.RateSource,
			&i.CreatedAt,
			&i.UpdatedAt,
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

const updateRecurringTransaction = `-- name: UpdateRecurringTransaction :execresult
UPDATE recurring_transactions
SET status = ?, next_due_date = ?, frequency = ?, day_of_month = ?,
    total_occurrences = ?, description = ?, amount = ?, currency = ?, type = ?,
    category = ?, is_chomesh = ?, recipient = ?, original_amount = ?,
    original_currency = ?, conversion_rate = ?, conversion_date = ?,
    rate_source = ?, updated_at = ?
WHERE id = ?
`

type UpdateRecurringTransactionParams struct {
	Status           string
	NextDueDate      string
	Frequency        string
	DayOfMonth       int64
	TotalOccurrences sql.NullInt64
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
	UpdatedAt        string
	ID               string
}

func (q *Queries) UpdateRecurringTransaction(ctx context.Context, arg UpdateRecurringTransactionParams) (sql.Result, error) {
	return q.db.ExecContext(ctx, updateRecurringTransaction,
		arg.Status,
		arg.NextDueDate,
		arg.Frequency,
		arg.DayOfMonth,
		arg.TotalOccurrences,
		arg.Description,
		arg.Amount,
		arg.Currency,
		arg.Type,
		arg.Category,
		arg.IsChomesh,
		arg.Recipient,
		arg.OriginalAmount,
		arg.OriginalCurrency,
		arg.ConversionRate,
		arg.ConversionDate,
		arg.RateSource,
		arg.UpdatedAt,
		arg.ID,
	)
}
