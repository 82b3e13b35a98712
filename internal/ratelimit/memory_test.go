package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("counts within a window", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
		store := NewMemoryStoreWithClock(clock.Now)

		for i := 1; i <= 3; i++ {
			w, err := store.Increment(ctx, "alice", time.Hour)
			require.NoError(t, err)
			assert.Equal(t, i, w.Count)
			assert.Equal(t, clock.now.Add(time.Hour), w.ResetAt)
		}

		w, err := store.Get(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, 3, w.Count)
	})

	t.Run("expired window starts over", func(t *testing.T) {
		clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
		store := NewMemoryStoreWithClock(clock.Now)

		_, err := store.Increment(ctx, "bob", time.Hour)
		require.NoError(t, err)
		_, err = store.Increment(ctx, "bob", time.Hour)
		require.NoError(t, err)

		clock.Advance(time.Hour)

		w, err := store.Get(ctx, "bob")
		require.NoError(t, err)
		assert.Zero(t, w.Count)

		w, err = store.Increment(ctx, "bob", time.Hour)
		require.NoError(t, err)
		assert.Equal(t, 1, w.Count)
		assert.Equal(t, clock.Now().Add(time.Hour), w.ResetAt)
	})

	t.Run("keys are independent and reset clears", func(t *testing.T) {
		store := NewMemoryStore()

		_, _ = store.Increment(ctx, "a", time.Minute)
		_, _ = store.Increment(ctx, "b", time.Minute)
		require.NoError(t, store.Reset(ctx, "a"))

		wa, _ := store.Get(ctx, "a")
		wb, _ := store.Get(ctx, "b")
		assert.Zero(t, wa.Count)
		assert.Equal(t, 1, wb.Count)
	})

	t.Run("concurrent increments are not lost", func(t *testing.T) {
		store := NewMemoryStore()
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = store.Increment(ctx, "busy", time.Hour)
			}()
		}
		wg.Wait()

		w, err := store.Get(ctx, "busy")
		require.NoError(t, err)
		assert.Equal(t, 50, w.Count)
	})
}

func TestRemaining(t *testing.T) {
	assert.Equal(t, -1, Remaining(Window{Count: 10}, 0))
	assert.Equal(t, 7, Remaining(Window{Count: 3}, 10))
	assert.Equal(t, 0, Remaining(Window{Count: 10}, 10))
	assert.Equal(t, 0, Remaining(Window{Count: 12}, 10))
}
