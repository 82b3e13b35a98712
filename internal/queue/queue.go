package queue

import (
	"context"
	"errors"
	"time"
)

// Package queue provides typed async queues with two backends:
//
// 1. Memory Queue (channel-based): no persistence, no external services.
//    Suits single-node and development deployments.
//
// 2. Redis Queue (Redis list-based): survives restarts and can be
//    drained by workers on several gateway replicas.
//
// The audit pipeline is the main consumer:
//
//	Orchestrator ──► Audit Queue ──► AuditQueueWorker ──► audit_logs
//	                                   │ (retry, backoff)
//	                                   └──► DLQ
//
// Items are JSON-encoded on the Redis backend, so T must round-trip through
// encoding/json.

// Queue defines a typed FIFO queue
type Queue[T any] interface {
	// Enqueue adds an item to the queue
	Enqueue(ctx context.Context, item T) error

	// Dequeue blocks until at least one item is available or ctx is done,
	// then returns up to maxItems items
	Dequeue(ctx context.Context, maxItems int) ([]T, error)

	// DequeueWithTimeout is Dequeue bounded by timeout; it returns an empty
	// slice when nothing arrived in time
	DequeueWithTimeout(ctx context.Context, maxItems int, timeout time.Duration) ([]T, error)

	// Length returns the current queue length
	Length(ctx context.Context) (int, error)

	// Close shuts down the queue
	Close() error
}

// DeadLetterQueue holds items that exhausted their retries
type DeadLetterQueue[T any] interface {
	Add(ctx context.Context, item T, err error) error
	List(ctx context.Context, maxItems int) ([]DeadLetterItem[T], error)
	Remove(ctx context.Context, id string) error
	Close() error
}

// DeadLetterItem is a failed item plus the error that sent it there
type DeadLetterItem[T any] struct {
	ID        string    `json:"id"`
	Item      T         `json:"item"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
	Retries   int       `json:"retries"`
}

// Config holds queue configuration
type Config struct {
	// BatchSize is the maximum number of items a worker processes at once
	BatchSize int

	// BatchTimeout is how long a worker waits before flushing a partial batch
	BatchTimeout time.Duration

	// MaxRetries is the maximum number of retry attempts
	MaxRetries int

	// RetryBackoff is the initial backoff between retries; it doubles per attempt
	RetryBackoff time.Duration

	// QueueName is used to derive the Redis keys queue:<name> and dlq:<name>
	QueueName string
}

// DefaultConfig returns default queue configuration
func DefaultConfig(queueName string) *Config {
	return &Config{
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		QueueName:    queueName,
	}
}

var (
	// ErrQueueClosed is returned when operating on a closed queue
	ErrQueueClosed = errors.New("queue is closed")

	// ErrItemNotFound is returned when a dead-letter id is unknown
	ErrItemNotFound = errors.New("item not found")

	// ErrMaxRetriesExceeded marks audit entries moved to the dead-letter queue
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
