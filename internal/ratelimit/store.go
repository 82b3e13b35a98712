// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"time"
)

// Window is the state of one key's current counting window
type Window struct {
	Count   int
	ResetAt time.Time
}

// Store is a fixed-window counter. Increment is atomic and opens a fresh
// window on first use or once the previous one expired. Get on an unknown or
// expired key returns a zero Window.
type Store interface {
	Get(ctx context.Context, key string) (Window, error)
	Increment(ctx context.Context, key string, window time.Duration) (Window, error)
	Reset(ctx context.Context, key string) error
}

// Remaining returns how many requests are left under limit. A limit <= 0 is unlimited.
func Remaining(w Window, limit int) int {
	if limit <= 0 {
		return -1
	}
	if w.Count >= limit {
		return 0
	}
	return limit - w.Count
}
