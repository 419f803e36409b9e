package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"maaser/internal/core"
	"maaser/internal/log"
	"maaser/internal/sheets"
)

// ExportSource is the ledger side of the export loop.
type ExportSource interface {
	GetEntry(ctx context.Context, id string) (core.LedgerEntry, error)
	ListPendingExport(ctx context.Context, limit int) ([]core.LedgerEntry, error)
	MarkExported(ctx context.Context, id string, at time.Time) error
}

// ExportProcessorConfig holds configuration for the export processor
type ExportProcessorConfig struct {
	// PollInterval is how often to check for pending entries (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of entries to export per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before an entry is parked (default: 3)
	MaxRetries int

	// RetryParkedInterval is how often parked entries are released for
	// another round of attempts (default: 1h). Zero keeps them parked.
	RetryParkedInterval time.Duration
}

// DefaultExportProcessorConfig returns sensible defaults
func DefaultExportProcessorConfig() ExportProcessorConfig {
	return ExportProcessorConfig{
		PollInterval: 10 * time.Second,
		BatchSize:    10,
		MaxRetries:   3,

		RetryParkedInterval: time.Hour,
	}
}

// ExportStats describes the export backlog.
type ExportStats struct {
	Pending int
	Parked  int
}

// ExportProcessor mirrors committed ledger entries to a sheet. Entries are
// marked exported in the ledger once the sheet accepted them, so the loop
// resumes where it left off after a restart.
type ExportProcessor struct {
	source ExportSource
	sheets sheets.EntryWriter
	config ExportProcessorConfig
	logger *log.Logger
	now    func() time.Time

	// attempts counts failures per entry; entries at MaxRetries are parked
	// until RetryFailed, which the run loop calls every RetryParkedInterval.
	attemptsMu sync.Mutex
	attempts   map[string]int

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewExportProcessor creates a new export processor
func NewExportProcessor(source ExportSource, writer sheets.EntryWriter, config ExportProcessorConfig, logger *log.Logger) *ExportProcessor {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultExportProcessorConfig().BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultExportProcessorConfig().MaxRetries
	}
	return &ExportProcessor{
		source:   source,
		sheets:   writer,
		config:   config,
		logger:   logger.WithComponent(log.ComponentExport),
		now:      time.Now,
		attempts: map[string]int{},
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *ExportProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("export processor is already running")
	}
	if p.config.PollInterval <= 0 {
		p.mu.Unlock()
		return fmt.Errorf("export processor poll interval must be positive")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	p.logger.InfoContext(ctx, "Export processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"retry_parked_interval", p.config.RetryParkedInterval)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *ExportProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		p.logger.InfoContext(ctx, "Export processor stopped gracefully")
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Export processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning returns whether the processor is currently running
func (p *ExportProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *ExportProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	var retryC <-chan time.Time
	if p.config.RetryParkedInterval > 0 {
		retryTicker := time.NewTicker(p.config.RetryParkedInterval)
		defer retryTicker.Stop()
		retryC = retryTicker.C
	}

	// Sweep immediately on startup
	p.ProcessBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.ProcessBatch(ctx)
		case <-retryC:
			if n := p.RetryFailed(); n > 0 {
				p.logger.InfoContext(ctx, "Released parked entries for retry", "count", n)
			}
		}
	}
}

// ProcessBatch exports one batch of pending entries and returns how many were exported.
func (p *ExportProcessor) ProcessBatch(ctx context.Context) int {
	parked := p.parkedCount()
	pending, err := p.source.ListPendingExport(ctx, p.config.BatchSize+parked)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to list pending entries", log.FieldError, err)
		return 0
	}

	exported := 0
	for _, e := range pending {
		if exported >= p.config.BatchSize {
			break
		}
		if ctx.Err() != nil || p.stopping() {
			return exported
		}
		if p.isParked(e.ID) {
			continue
		}
		if err := p.export(ctx, e); err != nil {
			p.handleFailure(ctx, e, err)
			continue
		}
		exported++
	}
	if exported > 0 {
		p.logger.DebugContext(ctx, "Exported batch", "count", exported)
	}
	return exported
}

// ExportEntry mirrors a single entry by ID. Entries already exported are
// skipped, and so are parked entries: the sweep picks them up once released.
func (p *ExportProcessor) ExportEntry(ctx context.Context, id string) error {
	e, err := p.source.GetEntry(ctx, id)
	if err != nil {
		return fmt.Errorf("get entry %s: %w", id, err)
	}
	if e.ExportedAt != nil {
		p.logger.DebugContext(ctx, "Entry already exported", log.FieldEntryID, id)
		return nil
	}
	if p.isParked(id) {
		p.logger.DebugContext(ctx, "Entry is parked, leaving it to the sweep", log.FieldEntryID, id)
		return nil
	}
	if err := p.export(ctx, e); err != nil {
		p.handleFailure(ctx, e, err)
		return err
	}
	return nil
}

func (p *ExportProcessor) export(ctx context.Context, e core.LedgerEntry) error {
	if p.sheets == nil {
		return errors.New("no sheet writer configured")
	}
	ref, err := p.sheets.Append(ctx, e)
	if err != nil {
		return fmt.Errorf("append to sheet: %w", err)
	}

	// A failure here re-exports the entry on the next sweep; writers dedupe on entry ID.
	if err := p.source.MarkExported(ctx, e.ID, p.now().UTC()); err != nil {
		p.logger.WarnContext(ctx, "Failed to mark entry as exported",
			log.FieldEntryID, e.ID, log.FieldError, err)
	}

	p.attemptsMu.Lock()
	delete(p.attempts, e.ID)
	p.attemptsMu.Unlock()

	p.logger.InfoContext(ctx, "Exported ledger entry",
		log.FieldEntryID, e.ID,
		log.FieldObligationID, e.SourceObligationID,
		log.FieldOccurrenceDate, e.Date.String(),
		log.FieldSheetsRef, ref)
	return nil
}

func (p *ExportProcessor) handleFailure(ctx context.Context, e core.LedgerEntry, exportErr error) {
	p.attemptsMu.Lock()
	p.attempts[e.ID]++
	attempt := p.attempts[e.ID]
	p.attemptsMu.Unlock()

	if attempt >= p.config.MaxRetries {
		p.logger.ErrorContext(ctx, "Entry export failed permanently after max retries",
			log.FieldEntryID, e.ID,
			"attempts", attempt,
			log.FieldError, exportErr)
		return
	}
	p.logger.WarnContext(ctx, "Entry export failed",
		log.FieldEntryID, e.ID,
		"attempt", attempt,
		log.FieldError, exportErr)
}

func (p *ExportProcessor) isParked(id string) bool {
	p.attemptsMu.Lock()
	defer p.attemptsMu.Unlock()
	return p.attempts[id] >= p.config.MaxRetries
}

func (p *ExportProcessor) parkedCount() int {
	p.attemptsMu.Lock()
	defer p.attemptsMu.Unlock()
	n := 0
	for _, a := range p.attempts {
		if a >= p.config.MaxRetries {
			n++
		}
	}
	return n
}

func (p *ExportProcessor) stopping() bool {
	p.mu.Lock()
	ch := p.stopCh
	p.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// Stats returns the current backlog, counting at most limit pending entries.
func (p *ExportProcessor) Stats(ctx context.Context, limit int) (ExportStats, error) {
	pending, err := p.source.ListPendingExport(ctx, limit)
	if err != nil {
		return ExportStats{}, err
	}
	return ExportStats{Pending: len(pending), Parked: p.parkedCount()}, nil
}

// RetryFailed clears failure counts so the next sweep retries parked
// entries. It returns how many entries were parked.
func (p *ExportProcessor) RetryFailed() int {
	p.attemptsMu.Lock()
	defer p.attemptsMu.Unlock()
	n := 0
	for _, a := range p.attempts {
		if a >= p.config.MaxRetries {
			n++
		}
	}
	p.attempts = map[string]int{}
	return n
}
