package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisQueue_EnqueueDequeue(t *testing.T) {
	mr, client := newMiniRedis(t)
	q := NewRedisQueue[testEvent](client, "audit")
	defer q.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Enqueue(ctx, testEvent{UserID: "u", Seq: i}))
	}

	assert.True(t, mr.Exists("queue:audit"))
	n, err := q.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 3)
	for i, item := range items {
		assert.Equal(t, i, item.Seq)
	}

	n, err = q.Length(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisQueue_DequeueWithTimeout(t *testing.T) {
	_, client := newMiniRedis(t)
	q := NewRedisQueue[testEvent](client, "audit")
	ctx := context.Background()

	items, err := q.DequeueWithTimeout(ctx, 5, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, items)

	require.NoError(t, q.Enqueue(ctx, testEvent{UserID: "x"}))
	items, err = q.DequeueWithTimeout(ctx, 5, time.Second)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "x", items[0].UserID)
}

func TestRedisQueue_SkipsUndecodableEntries(t *testing.T) {
	mr, client := newMiniRedis(t)
	q := NewRedisQueue[testEvent](client, "audit")
	ctx := context.Background()

	_, err := mr.Push("queue:audit", `{"user_id":"ok","seq":1}`, "not json", `{"user_id":"ok","seq":2}`)
	require.NoError(t, err)

	items, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, 2, items[1].Seq)
}

func TestRedisQueue_CloseKeepsSharedClient(t *testing.T) {
	_, client := newMiniRedis(t)
	q := NewRedisQueue[int](client, "shared")
	require.NoError(t, q.Close())
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestRedisDeadLetterQueue(t *testing.T) {
	mr, client := newMiniRedis(t)
	dlq := NewRedisDeadLetterQueue[testEvent](client, "audit")
	ctx := context.Background()

	require.NoError(t, dlq.Add(ctx, testEvent{UserID: "first"}, ErrMaxRetriesExceeded))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, dlq.Add(ctx, testEvent{UserID: "second"}, errors.New("boom")))

	assert.True(t, mr.Exists("dlq:audit"))

	items, err := dlq.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Item.UserID)
	assert.Equal(t, ErrMaxRetriesExceeded.Error(), items[0].Error)

	limited, err := dlq.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, dlq.Remove(ctx, items[0].ID))
	assert.ErrorIs(t, dlq.Remove(ctx, items[0].ID), ErrItemNotFound)
}
