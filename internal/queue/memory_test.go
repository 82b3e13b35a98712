package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testEvent struct {
	UserID string `json:"user_id"`
	Seq    int    `json:"seq"`
}

func TestMemoryQueue_EnqueueDequeue(t *testing.T) {
	q := NewMemoryQueue[testEvent](DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	item := testEvent{UserID: "u1", Seq: 1}
	if err := q.Enqueue(ctx, item); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	items, err := q.Dequeue(ctx, 1)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("Expected 1 item, got %d", len(items))
	}
	if items[0] != item {
		t.Errorf("Expected %+v, got %+v", item, items[0])
	}
}

func TestMemoryQueue_BatchesPreserveOrder(t *testing.T) {
	config := DefaultConfig("test")
	config.BatchSize = 5
	q := NewMemoryQueue[int](config)
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := q.Enqueue(ctx, i); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	first, err := q.Dequeue(ctx, 5)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	second, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}

	if len(first) != 5 || len(second) != 5 {
		t.Fatalf("Expected batches of 5, got %d and %d", len(first), len(second))
	}
	for i, v := range append(first, second...) {
		if v != i {
			t.Errorf("Position %d: expected %d, got %d", i, i, v)
		}
	}
}

func TestMemoryQueue_DequeueWithTimeout(t *testing.T) {
	q := NewMemoryQueue[string](DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()

	start := time.Now()
	items, err := q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("Expected 0 items, got %d", len(items))
	}
	if elapsed < 100*time.Millisecond {
		t.Errorf("Expected timeout, but returned early: %v", elapsed)
	}

	if err := q.Enqueue(ctx, "test"); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	items, err = q.DequeueWithTimeout(ctx, 1, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("DequeueWithTimeout failed: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("Expected 1 item, got %d", len(items))
	}
}

func TestMemoryQueue_ConcurrentEnqueue(t *testing.T) {
	q := NewMemoryQueue[int](DefaultConfig("test"))
	defer q.Close()

	ctx := context.Background()
	var wg sync.WaitGroup

	numGoroutines := 10
	itemsPerGoroutine := 50

	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < itemsPerGoroutine; j++ {
				if err := q.Enqueue(ctx, id*itemsPerGoroutine+j); err != nil {
					t.Errorf("Enqueue failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	length, err := q.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if expected := numGoroutines * itemsPerGoroutine; length != expected {
		t.Errorf("Expected length %d, got %d", expected, length)
	}
}

func TestMemoryQueue_CloseUnblocksDequeue(t *testing.T) {
	q := NewMemoryQueue[int](DefaultConfig("test"))

	errCh := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background(), 1)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrQueueClosed) {
			t.Errorf("Expected ErrQueueClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not return after Close")
	}

	if err := q.Enqueue(context.Background(), 1); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	if _, err := q.Length(context.Background()); !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed, got %v", err)
	}
	// Closing twice is safe
	if err := q.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}

func TestMemoryQueue_ContextCancel(t *testing.T) {
	q := NewMemoryQueue[int](DefaultConfig("test"))
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx, 1)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", err)
	}
}

func TestMemoryDeadLetterQueue(t *testing.T) {
	dlq := NewMemoryDeadLetterQueue[testEvent]()
	defer dlq.Close()

	ctx := context.Background()

	if err := dlq.Add(ctx, testEvent{UserID: "a"}, ErrMaxRetriesExceeded); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := dlq.Add(ctx, testEvent{UserID: "b"}, errors.New("database is locked")); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	items, err := dlq.List(ctx, 10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].Item.UserID != "a" || items[1].Item.UserID != "b" {
		t.Errorf("Unexpected order: %+v", items)
	}
	if items[0].ID == "" || items[0].ID == items[1].ID {
		t.Errorf("Expected distinct non-empty ids, got %q and %q", items[0].ID, items[1].ID)
	}
	if items[1].Error != "database is locked" {
		t.Errorf("Unexpected error text %q", items[1].Error)
	}

	if err := dlq.Remove(ctx, items[0].ID); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := dlq.Remove(ctx, items[0].ID); !errors.Is(err, ErrItemNotFound) {
		t.Errorf("Expected ErrItemNotFound, got %v", err)
	}

	items, _ = dlq.List(ctx, 0)
	if len(items) != 1 {
		t.Errorf("Expected 1 remaining item, got %d", len(items))
	}
}
