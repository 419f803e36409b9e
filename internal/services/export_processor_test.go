package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"maaser/internal/core"
	"maaser/internal/log"
	"maaser/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

// memLedger is an in-memory ExportSource.
type memLedger struct {
	mu      sync.Mutex
	entries map[string]core.LedgerEntry
	listErr error
	marks   int
}

func newMemLedger(entries ...core.LedgerEntry) *memLedger {
	l := &memLedger{entries: map[string]core.LedgerEntry{}}
	for _, e := range entries {
		l.entries[e.ID] = e
	}
	return l
}

func (l *memLedger) GetEntry(_ context.Context, id string) (core.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return core.LedgerEntry{}, core.ErrNotFound
	}
	return e, nil
}

func (l *memLedger) ListPendingExport(_ context.Context, limit int) ([]core.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listErr != nil {
		return nil, l.listErr
	}
	var out []core.LedgerEntry
	for _, e := range l.entries {
		if e.ExportedAt == nil {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) MarkExported(_ context.Context, id string, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[id]
	if !ok {
		return core.ErrNotFound
	}
	if e.ExportedAt == nil {
		e.ExportedAt = &at
		l.entries[id] = e
		l.marks++
	}
	return nil
}

func (l *memLedger) exported(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.entries[id].ExportedAt != nil
}

// flakyWriter fails for the listed entry IDs.
type flakyWriter struct {
	mu      sync.Mutex
	failFor map[string]bool
	calls   int
	inner   *memory.Store
}

func (w *flakyWriter) Append(ctx context.Context, e core.LedgerEntry) (string, error) {
	w.mu.Lock()
	w.calls++
	fail := w.failFor[e.ID]
	w.mu.Unlock()
	if fail {
		return "", errors.New("sheet unavailable")
	}
	return w.inner.Append(ctx, e)
}

func (w *flakyWriter) heal() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failFor = nil
}

func (w *flakyWriter) callCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

func ledgerEntry(id string) core.LedgerEntry {
	return core.LedgerEntry{
		ID:                 id,
		Date:               core.NewDate(2024, 1, 31),
		SourceObligationID: "ob-1",
		OccurrenceNumber:   1,
		Payload: core.Payload{
			Amount:   decimal.RequireFromString("10"),
			Currency: "ILS",
			Type:     core.TypeDonation,
		},
	}
}

func TestDefaultExportProcessorConfig(t *testing.T) {
	config := DefaultExportProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.RetryParkedInterval != time.Hour {
		t.Errorf("expected RetryParkedInterval 1h, got %v", config.RetryParkedInterval)
	}
}

func TestNewExportProcessor_FillsDefaults(t *testing.T) {
	p := NewExportProcessor(nil, nil, ExportProcessorConfig{}, log.Discard())
	if p.config.BatchSize != 10 || p.config.MaxRetries != 3 {
		t.Errorf("expected defaults, got %+v", p.config)
	}
	if p.IsRunning() {
		t.Error("processor should not be running initially")
	}
}

func TestExportProcessor_ProcessBatch(t *testing.T) {
	ledger := newMemLedger(ledgerEntry("a"), ledgerEntry("b"), ledgerEntry("c"))
	sink := memory.New()
	p := NewExportProcessor(ledger, sink, ExportProcessorConfig{BatchSize: 2, MaxRetries: 3}, log.Discard())

	if n := p.ProcessBatch(context.Background()); n != 2 {
		t.Fatalf("first batch exported %d, want 2", n)
	}
	if n := p.ProcessBatch(context.Background()); n != 1 {
		t.Fatalf("second batch exported %d, want 1", n)
	}
	if n := p.ProcessBatch(context.Background()); n != 0 {
		t.Fatalf("third batch exported %d, want 0", n)
	}
	if sink.Len() != 3 {
		t.Errorf("sink has %d rows, want 3", sink.Len())
	}
	for _, id := range []string{"a", "b", "c"} {
		if !ledger.exported(id) {
			t.Errorf("entry %s not marked exported", id)
		}
	}
}

func TestExportProcessor_ParksAfterMaxRetries(t *testing.T) {
	ledger := newMemLedger(ledgerEntry("a"), ledgerEntry("b"))
	writer := &flakyWriter{failFor: map[string]bool{"a": true}, inner: memory.New()}
	p := NewExportProcessor(ledger, writer, ExportProcessorConfig{BatchSize: 10, MaxRetries: 2}, log.Discard())
	ctx := context.Background()

	p.ProcessBatch(ctx)
	p.ProcessBatch(ctx)
	callsAfterParking := writer.calls
	p.ProcessBatch(ctx)

	if writer.calls != callsAfterParking {
		t.Errorf("parked entry was retried: calls %d -> %d", callsAfterParking, writer.calls)
	}
	stats, err := p.Stats(ctx, 100)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Pending != 1 || stats.Parked != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	writer.heal()
	if released := p.RetryFailed(); released != 1 {
		t.Errorf("RetryFailed released %d, want 1", released)
	}
	if n := p.ProcessBatch(ctx); n != 1 {
		t.Errorf("retry exported %d, want 1", n)
	}
	if !ledger.exported("a") {
		t.Error("entry a should be exported after retry")
	}
}

func TestExportProcessor_ExportEntry(t *testing.T) {
	ledger := newMemLedger(ledgerEntry("a"))
	sink := memory.New()
	p := NewExportProcessor(ledger, sink, DefaultExportProcessorConfig(), log.Discard())
	ctx := context.Background()

	if err := p.ExportEntry(ctx, "a"); err != nil {
		t.Fatalf("export: %v", err)
	}
	if err := p.ExportEntry(ctx, "a"); err != nil {
		t.Fatalf("second export: %v", err)
	}
	if sink.Len() != 1 || ledger.marks != 1 {
		t.Errorf("expected one row and one mark, got %d rows %d marks", sink.Len(), ledger.marks)
	}

	if err := p.ExportEntry(ctx, "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExportProcessor_ExportEntrySkipsParked(t *testing.T) {
	ledger := newMemLedger(ledgerEntry("a"))
	writer := &flakyWriter{failFor: map[string]bool{"a": true}, inner: memory.New()}
	p := NewExportProcessor(ledger, writer, ExportProcessorConfig{BatchSize: 10, MaxRetries: 2}, log.Discard())
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := p.ExportEntry(ctx, "a"); err == nil {
			t.Fatalf("attempt %d: expected export error", i+1)
		}
	}
	calls := writer.callCount()

	if err := p.ExportEntry(ctx, "a"); err != nil {
		t.Fatalf("parked entry: %v", err)
	}
	if writer.callCount() != calls {
		t.Errorf("parked entry reached the writer: calls %d -> %d", calls, writer.callCount())
	}
	if ledger.exported("a") {
		t.Error("parked entry should not be marked exported")
	}
}

func TestExportProcessor_RunLoopReleasesParked(t *testing.T) {
	ledger := newMemLedger(ledgerEntry("a"))
	writer := &flakyWriter{failFor: map[string]bool{"a": true}, inner: memory.New()}
	p := NewExportProcessor(ledger, writer, ExportProcessorConfig{
		PollInterval:        5 * time.Millisecond,
		BatchSize:           10,
		MaxRetries:          1,
		RetryParkedInterval: 20 * time.Millisecond,
	}, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		p.Stop(stopCtx)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for p.parkedCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("entry was never parked")
		}
		time.Sleep(time.Millisecond)
	}
	writer.heal()

	for !ledger.exported("a") {
		if time.Now().After(deadline) {
			t.Fatal("parked entry was not exported after release")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestExportProcessor_ListFailure(t *testing.T) {
	ledger := newMemLedger(ledgerEntry("a"))
	ledger.listErr = errors.New("disk I/O error")
	p := NewExportProcessor(ledger, memory.New(), DefaultExportProcessorConfig(), log.Discard())

	if n := p.ProcessBatch(context.Background()); n != 0 {
		t.Errorf("expected nothing exported, got %d", n)
	}
}

func TestExportProcessor_StartTwice(t *testing.T) {
	ledger := newMemLedger()
	config := DefaultExportProcessorConfig()
	config.PollInterval = 10 * time.Millisecond
	p := NewExportProcessor(ledger, memory.New(), config, log.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := p.Start(ctx); err == nil {
		t.Error("expected error when starting already running processor")
	}
	if !p.IsRunning() {
		t.Error("processor should be running")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should be stopped")
	}
}

func TestExportProcessor_StopNotRunning(t *testing.T) {
	p := NewExportProcessor(nil, nil, DefaultExportProcessorConfig(), log.Discard())
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop should not error when not running: %v", err)
	}
}
