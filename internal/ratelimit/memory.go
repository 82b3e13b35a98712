package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps windows in process memory
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]Window
	now     func() time.Time
}

// NewMemoryStore creates an in-process store
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock creates a store reading time from now
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]Window),
		now:     now,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[key]
	if !ok || !s.now().Before(w.ResetAt) {
		delete(s.windows, key)
		return Window{}, nil
	}
	return w, nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, window time.Duration) (Window, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.ResetAt) {
		w = Window{ResetAt: now.Add(window)}
	}
	w.Count++
	s.windows[key] = w
	return w, nil
}

func (s *MemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}
