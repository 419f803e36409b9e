package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"maaser/internal/amqp"
	"maaser/internal/cache"
	"maaser/internal/core"
	"maaser/internal/log"
)

// Exporter mirrors ledger entries; services.ExportProcessor implements it.
type Exporter interface {
	ExportEntry(ctx context.Context, id string) error
	ProcessBatch(ctx context.Context) int
}

// startupRounds bounds the batches swept at startup.
const startupRounds = 5

// SyncWorker mirrors entries announced over AMQP and sweeps entries whose
// messages were lost.
type SyncWorker struct {
	exporter Exporter
	seen     *cache.LRUCache[time.Time]
	logger   *log.Logger
}

// NewSyncWorker creates a worker that remembers up to dedupeSize handled
// entries for dedupeTTL, so redelivered messages are acknowledged without work.
func NewSyncWorker(exporter Exporter, dedupeSize int, dedupeTTL time.Duration, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &SyncWorker{
		exporter: exporter,
		seen:     cache.NewLRUCache[time.Time](dedupeSize, dedupeTTL),
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// Seen exposes the dedupe cache for registration with a cache.Manager.
func (w *SyncWorker) Seen() cache.Cleaner {
	return w.seen
}

// HandleEntryCreated processes a single entry created message from AMQP.
// A returned error requeues the message.
func (w *SyncWorker) HandleEntryCreated(ctx context.Context, msg *amqp.EntryCreatedMessage) error {
	if msg.EntryID == "" {
		w.logger.WarnContext(ctx, "Dropping message without entry id")
		return nil
	}
	if w.seen.SeenOrAdd(msg.EntryID, time.Now()) {
		w.logger.DebugContext(ctx, "Duplicate entry message, skipping",
			log.FieldEntryID, msg.EntryID)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing entry created message",
		log.FieldEntryID, msg.EntryID,
		log.FieldObligationID, msg.ObligationID,
		log.FieldOccurrenceDate, msg.OccurrenceDate)

	err := w.exporter.ExportEntry(ctx, msg.EntryID)
	if errors.Is(err, core.ErrNotFound) {
		// Nothing to mirror: the entry was never committed or is gone.
		w.logger.WarnContext(ctx, "Entry not found, dropping message",
			log.FieldEntryID, msg.EntryID)
		return nil
	}
	if err != nil {
		w.seen.Delete(msg.EntryID)
		return fmt.Errorf("export entry %s: %w", msg.EntryID, err)
	}
	return nil
}

// ProcessPendingEntries exports one batch of entries not yet mirrored.
// This is a backup mechanism in case AMQP messages are lost.
func (w *SyncWorker) ProcessPendingEntries(ctx context.Context) int {
	n := w.exporter.ProcessBatch(ctx)
	if n > 0 {
		w.logger.InfoContext(ctx, "Exported pending entries", "count", n)
	}
	return n
}

// StartupSyncCheck sweeps pending entries at worker startup to recover from
// missed messages or worker downtime.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) int {
	total := 0
	for round := 0; round < startupRounds; round++ {
		if ctx.Err() != nil {
			break
		}
		n := w.exporter.ProcessBatch(ctx)
		total += n
		if n == 0 {
			break
		}
	}

	if total == 0 {
		w.logger.InfoContext(ctx, "No pending entries found on startup")
	} else {
		w.logger.InfoContext(ctx, "Startup sync completed", "exported", total)
	}
	return total
}
