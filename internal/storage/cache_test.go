package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLRUCache(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("evicts least recently used", func(t *testing.T) {
		c := NewLRUCache[int](2, time.Minute).WithClock(clock)
		c.Set("a", 1)
		c.Set("b", 2)
		_, _ = c.Get("a")
		c.Set("c", 3)

		_, ok := c.Get("b")
		assert.False(t, ok)
		v, ok := c.Get("a")
		assert.True(t, ok)
		assert.Equal(t, 1, v)
		assert.Equal(t, 2, c.Len())
	})

	t.Run("expires after ttl", func(t *testing.T) {
		c := NewLRUCache[string](10, 30*time.Second).WithClock(clock)
		c.Set("policy", "p1")

		now = now.Add(29 * time.Second)
		_, ok := c.Get("policy")
		assert.True(t, ok)

		now = now.Add(time.Second)
		_, ok = c.Get("policy")
		assert.False(t, ok)

		stats := c.GetStats()
		assert.Equal(t, uint64(1), stats.Hits)
		assert.Equal(t, uint64(1), stats.Misses)
	})

	t.Run("cleanup and clear", func(t *testing.T) {
		c := NewLRUCache[int](10, time.Second).WithClock(clock)
		c.Set("x", 1)
		c.Set("y", 2)
		now = now.Add(2 * time.Second)
		c.Set("z", 3)

		assert.Equal(t, 2, c.CleanupExpired())
		assert.Equal(t, 1, c.Len())

		c.Delete("z")
		assert.Zero(t, c.Len())

		c.Set("w", 4)
		c.Clear()
		assert.Zero(t, c.Len())
	})
}
