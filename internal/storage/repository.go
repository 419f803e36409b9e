package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"maaser/internal/core"

	_ "modernc.org/sqlite"
)

// DefaultEntryLimit bounds ListEntries when the filter sets no limit.
const DefaultEntryLimit = 500

// SQLiteRepository is the ledger store. It holds a single connection: the
// store has one writer, and every unit of work owns that connection until it
// commits or rolls back.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

var (
	_ core.ScheduleRepository = (*SQLiteRepository)(nil)
	_ core.ObligationStore    = (*SQLiteRepository)(nil)
	_ core.LedgerReader       = (*SQLiteRepository)(nil)
)

// dsn adds the connection pragmas modernc applies to every new connection.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return "file:" + dbPath + "?" + q.Encode()
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the main pool takes the only connection.
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// ListActiveDue implements core.ScheduleRepository
func (r *SQLiteRepository) ListActiveDue(ctx context.Context, today core.Date) ([]core.Obligation, error) {
	rows, err := r.queries.ListActiveDueRecurringTransactions(ctx, today.String())
	if err != nil {
		return nil, fmt.Errorf("list due obligations: %w", err)
	}
	return obligationsFromRows(rows)
}

// Begin implements core.ScheduleRepository
func (r *SQLiteRepository) Begin(ctx context.Context) (core.UnitOfWork, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &unit{tx: tx, queries: r.queries.WithTx(tx)}, nil
}

// CreateObligation implements core.ObligationStore
func (r *SQLiteRepository) CreateObligation(ctx context.Context, o core.Obligation) error {
	if err := r.queries.CreateRecurringTransaction(ctx, createObligationParams(o)); err != nil {
		return fmt.Errorf("create obligation: %w", err)
	}
	slog.InfoContext(ctx, "Obligation saved to SQLite",
		"obligation_id", o.ID,
		"frequency", o.Frequency,
		"next_due_date", o.NextDueDate.String())
	return nil
}

// GetObligation implements core.ObligationStore
func (r *SQLiteRepository) GetObligation(ctx context.Context, id string) (core.Obligation, error) {
	return getObligation(ctx, r.queries, id)
}

// ListObligations returns obligations with the given status, or all of them when status is empty.
func (r *SQLiteRepository) ListObligations(ctx context.Context, status core.Status) ([]core.Obligation, error) {
	var (
		rows []RecurringTransaction
		err  error
	)
	if status == "" {
		rows, err = r.queries.ListRecurringTransactions(ctx)
	} else {
		rows, err = r.queries.ListRecurringTransactionsByStatus(ctx, string(status))
	}
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	return obligationsFromRows(rows)
}

// UpdateObligation writes definition and schedule fields. The execution count
// is owned by the catch-up engine and is never changed here.
func (r *SQLiteRepository) UpdateObligation(ctx context.Context, o core.Obligation) error {
	res, err := r.queries.UpdateRecurringTransaction(ctx, updateObligationParams(o))
	if err != nil {
		return fmt.Errorf("update obligation %s: %w", o.ID, err)
	}
	return expectOneRow(res, "obligation "+o.ID)
}

// DeleteObligation removes the definition; entries it generated are kept.
func (r *SQLiteRepository) DeleteObligation(ctx context.Context, id string) error {
	res, err := r.queries.DeleteRecurringTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("delete obligation %s: %w", id, err)
	}
	return expectOneRow(res, "obligation "+id)
}

// GetEntry implements core.LedgerReader
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (core.LedgerEntry, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.LedgerEntry{}, fmt.Errorf("entry %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.LedgerEntry{}, fmt.Errorf("get entry %s: %w", id, err)
	}
	return entryFromRow(row)
}

// ListEntries implements core.LedgerReader
func (r *SQLiteRepository) ListEntries(ctx context.Context, f core.EntryFilter) ([]core.LedgerEntry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultEntryLimit
	}
	rows, err := r.queries.ListTransactions(ctx, ListTransactionsParams{
		SourceRecurringID: nullString(f.ObligationID),
		FromDate:          nullDate(f.From),
		ToDate:            nullDate(f.To),
		Limit:             int64(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entriesFromRows(rows)
}

// ListPendingExport returns entries not yet mirrored to the export sink, oldest first.
func (r *SQLiteRepository) ListPendingExport(ctx context.Context, limit int) ([]core.LedgerEntry, error) {
	rows, err := r.queries.ListPendingExportTransactions(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list pending export: %w", err)
	}
	return entriesFromRows(rows)
}

// MarkExported records when an entry was mirrored. Marking twice is a no-op.
func (r *SQLiteRepository) MarkExported(ctx context.Context, id string, at time.Time) error {
	_, err := r.queries.MarkTransactionExported(ctx, MarkTransactionExportedParams{
		ExportedAt: sql.NullString{String: formatTimestamp(at), Valid: true},
		ID:         id,
	})
	if err != nil {
		return fmt.Errorf("mark entry %s exported: %w", id, err)
	}
	return nil
}

// CountEntriesFor returns how many entries reference the obligation.
func (r *SQLiteRepository) CountEntriesFor(ctx context.Context, obligationID string) (int, error) {
	n, err := r.queries.CountTransactionsBySource(ctx, nullString(obligationID))
	if err != nil {
		return 0, fmt.Errorf("count entries for %s: %w", obligationID, err)
	}
	return int(n), nil
}

// unit is one obligation's transaction.
type unit struct {
	tx      *sql.Tx
	queries *Queries
}

func (u *unit) GetObligation(ctx context.Context, id string) (core.Obligation, error) {
	return getObligation(ctx, u.queries, id)
}

func (u *unit) InsertEntry(ctx context.Context, e core.LedgerEntry) error {
	if err := u.queries.CreateTransaction(ctx, createEntryParams(e)); err != nil {
		return fmt.Errorf("insert entry %s: %w", e.ID, err)
	}
	return nil
}

func (u *unit) Advance(ctx context.Context, id string, a core.ScheduleAdvance) error {
	res, err := u.queries.AdvanceRecurringTransaction(ctx, AdvanceRecurringTransactionParams{
		NextDueDate:    a.NextDueDate.String(),
		ExecutionCount: int64(a.ExecutionCount),
		Status:         string(a.Status),
		UpdatedAt:      formatTimestamp(a.UpdatedAt),
		ID:             id,
	})
	if err != nil {
		return fmt.Errorf("advance obligation %s: %w", id, err)
	}
	return expectOneRow(res, "active obligation "+id)
}

func (u *unit) Commit() error {
	return u.tx.Commit()
}

// Rollback is safe to call after Commit.
func (u *unit) Rollback() error {
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

func getObligation(ctx context.Context, q *Queries, id string) (core.Obligation, error) {
	row, err := q.GetRecurringTransaction(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Obligation{}, fmt.Errorf("obligation %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Obligation{}, fmt.Errorf("get obligation %s: %w", id, err)
	}
	return obligationFromRow(row)
}

func obligationsFromRows(rows []RecurringTransaction) ([]core.Obligation, error) {
	out := make([]core.Obligation, 0, len(rows))
	for _, row := range rows {
		o, err := obligationFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode obligation %s: %w", row.ID, err)
		}
		out = append(out, o)
	}
	return out, nil
}

func entriesFromRows(rows []Transaction) ([]core.LedgerEntry, error) {
	out := make([]core.LedgerEntry, 0, len(rows))
	for _, row := range rows {
		e, err := entryFromRow(row)
		if err != nil {
			return nil, fmt.Errorf("decode entry %s: %w", row.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func expectOneRow(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, core.ErrNotFound)
	}
	return nil
}
