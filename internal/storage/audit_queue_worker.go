package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/queue"
	"jaterm_gateway/internal/utils"
)

// AuditWriter is the subset of AuditRepository the worker writes through
type AuditWriter interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
	CreateBatch(ctx context.Context, entries []*models.AuditEntry) error
}

// BatchArchiver receives every batch after it was committed
type BatchArchiver interface {
	ArchiveBatch(ctx context.Context, entries []*models.AuditEntry) error
}

// AuditQueueWorker drains the audit queue into the database
type AuditQueueWorker struct {
	queue    queue.Queue[models.AuditEntry]
	dlq      queue.DeadLetterQueue[models.AuditEntry]
	repo     AuditWriter
	archiver BatchArchiver
	config   *queue.Config
	logger   *utils.Logger

	stopOnce    sync.Once
	stopChan    chan struct{}
	stoppedChan chan struct{}
}

// NewAuditQueueWorker creates a new audit queue worker. dlq and archiver may be nil.
func NewAuditQueueWorker(q queue.Queue[models.AuditEntry], dlq queue.DeadLetterQueue[models.AuditEntry], repo AuditWriter, archiver BatchArchiver, config *queue.Config) *AuditQueueWorker {
	if config == nil {
		config = queue.DefaultConfig("audit")
	}

	return &AuditQueueWorker{
		queue:       q,
		dlq:         dlq,
		repo:        repo,
		archiver:    archiver,
		config:      config,
		logger:      utils.NewLogger("audit-worker"),
		stopChan:    make(chan struct{}),
		stoppedChan: make(chan struct{}),
	}
}

// Start starts the worker goroutine
func (w *AuditQueueWorker) Start(ctx context.Context) {
	go w.run(ctx)
}

// Stop stops the worker after it flushed what is still queued
func (w *AuditQueueWorker) Stop() error {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.stoppedChan
	return nil
}

// Enqueue adds an entry to the queue
func (w *AuditQueueWorker) Enqueue(ctx context.Context, entry *models.AuditEntry) error {
	return w.queue.Enqueue(ctx, *entry)
}

func (w *AuditQueueWorker) run(ctx context.Context) {
	defer close(w.stoppedChan)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Audit worker stopping, flushing queue")
			w.drain()
			return
		case <-ctx.Done():
			w.logger.Info("Audit worker context cancelled, flushing queue")
			w.drain()
			return
		default:
			w.processBatch(ctx, w.config.BatchTimeout)
		}
	}
}

// drain flushes remaining items on a fresh context
func (w *AuditQueueWorker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for ctx.Err() == nil {
		n, err := w.queue.Length(ctx)
		if err != nil || n == 0 {
			return
		}
		if w.processBatch(ctx, 10*time.Millisecond) == 0 {
			return
		}
	}
}

// processBatch handles one batch and returns how many items it dequeued
func (w *AuditQueueWorker) processBatch(ctx context.Context, timeout time.Duration) int {
	items, err := w.queue.DequeueWithTimeout(ctx, w.config.BatchSize, timeout)
	if err != nil {
		if errors.Is(err, queue.ErrQueueClosed) || ctx.Err() != nil {
			w.wait(ctx, 100*time.Millisecond)
			return 0
		}
		w.logger.Error("Failed to dequeue audit entries", "error", err)
		w.wait(ctx, time.Second)
		return 0
	}

	if len(items) == 0 {
		return 0
	}

	entries := make([]*models.AuditEntry, len(items))
	for i := range items {
		entries[i] = &items[i]
	}

	w.logger.Debug("Processing audit batch", "count", len(entries))

	if err := w.repo.CreateBatch(ctx, entries); err != nil {
		w.logger.Error("Failed to insert audit batch, falling back to individual inserts", "error", err)
		committed := make([]*models.AuditEntry, 0, len(entries))
		for _, entry := range entries {
			if err := w.processItem(ctx, entry); err != nil {
				w.logger.Error("Failed to persist audit entry", "id", entry.ID, "error", err)
				continue
			}
			committed = append(committed, entry)
		}
		w.archive(ctx, committed)
		return len(items)
	}

	w.archive(ctx, entries)
	return len(items)
}

// processItem inserts one entry with exponential backoff, then dead-letters it
func (w *AuditQueueWorker) processItem(ctx context.Context, entry *models.AuditEntry) error {
	var lastErr error
	for attempt := 0; attempt <= w.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := w.config.RetryBackoff * time.Duration(1<<uint(attempt-1))
			w.logger.Debug("Retrying audit entry", "attempt", attempt, "backoff", backoff)
			if !w.wait(ctx, backoff) {
				break
			}
		}

		if err := w.repo.Create(ctx, entry); err != nil {
			lastErr = err
			w.logger.Warn("Failed to insert audit entry", "attempt", attempt, "error", err)
			if !utils.IsRecoverableError(err) {
				break
			}
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}

	if w.dlq != nil {
		if err := w.dlq.Add(ctx, *entry, lastErr); err != nil {
			w.logger.Error("Failed to add to dead letter queue", "error", err)
		} else {
			w.logger.Warn("Audit entry moved to DLQ", "id", entry.ID, "error", lastErr)
		}
	}

	return fmt.Errorf("%w: %v", queue.ErrMaxRetriesExceeded, lastErr)
}

func (w *AuditQueueWorker) archive(ctx context.Context, entries []*models.AuditEntry) {
	if w.archiver == nil || len(entries) == 0 {
		return
	}
	if err := w.archiver.ArchiveBatch(ctx, entries); err != nil {
		// The database copy is authoritative; archive failures are only logged.
		w.logger.Error("Failed to archive audit batch", "count", len(entries), "error", err)
	}
}

// wait sleeps for d unless the worker is stopped first; it reports whether the full wait elapsed
func (w *AuditQueueWorker) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-w.stopChan:
		return false
	case <-ctx.Done():
		return false
	}
}

// GetQueueLength returns the current queue length
func (w *AuditQueueWorker) GetQueueLength(ctx context.Context) (int, error) {
	return w.queue.Length(ctx)
}

// GetDeadLetterItems returns items from the dead letter queue
func (w *AuditQueueWorker) GetDeadLetterItems(ctx context.Context, maxItems int) ([]queue.DeadLetterItem[models.AuditEntry], error) {
	if w.dlq == nil {
		return nil, fmt.Errorf("dead letter queue not configured")
	}
	return w.dlq.List(ctx, maxItems)
}

// RetryDeadLetterItem re-enqueues a dead-lettered entry
func (w *AuditQueueWorker) RetryDeadLetterItem(ctx context.Context, id string) error {
	if w.dlq == nil {
		return fmt.Errorf("dead letter queue not configured")
	}

	items, err := w.dlq.List(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to list dead letter items: %w", err)
	}

	for _, dlItem := range items {
		if dlItem.ID != id {
			continue
		}
		if err := w.queue.Enqueue(ctx, dlItem.Item); err != nil {
			return fmt.Errorf("failed to re-enqueue item: %w", err)
		}
		if err := w.dlq.Remove(ctx, id); err != nil {
			return fmt.Errorf("failed to remove from DLQ: %w", err)
		}
		return nil
	}

	return queue.ErrItemNotFound
}
