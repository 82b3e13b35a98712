package audit

import (
	"context"
	"fmt"

	"jaterm_gateway/internal/models"
	"jaterm_gateway/internal/queue"
)

// Sink persists one audit entry. Write returns only once the entry is durable
// or reliably queued.
type Sink interface {
	Write(ctx context.Context, entry *models.AuditEntry) error
}

// EntryCreator is the append operation of the audit repository
type EntryCreator interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

// DirectSink writes synchronously to the repository
type DirectSink struct {
	repo EntryCreator
}

// NewDirectSink creates a sink that writes straight to repo
func NewDirectSink(repo EntryCreator) *DirectSink {
	return &DirectSink{repo: repo}
}

func (s *DirectSink) Write(ctx context.Context, entry *models.AuditEntry) error {
	return s.repo.Create(ctx, entry)
}

// QueueSink hands entries to a queue drained by storage.AuditQueueWorker
type QueueSink struct {
	queue queue.Queue[models.AuditEntry]
}

// NewQueueSink creates a sink backed by q
func NewQueueSink(q queue.Queue[models.AuditEntry]) *QueueSink {
	return &QueueSink{queue: q}
}

func (s *QueueSink) Write(ctx context.Context, entry *models.AuditEntry) error {
	if err := s.queue.Enqueue(ctx, *entry); err != nil {
		return fmt.Errorf("failed to enqueue audit entry: %w", err)
	}
	return nil
}
