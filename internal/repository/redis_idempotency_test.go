package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisIdempotencyStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewRedisIdempotencyStore(client, time.Hour, 30*time.Second)
	ctx := context.Background()

	rec, found, err := store.GetOrLock(ctx, "t1:POST:/v1/endpoints:k1")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, rec)

	// second caller sees the in-flight lock, which lives only as long as a request
	rec, found, err = store.GetOrLock(ctx, "t1:POST:/v1/endpoints:k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, rec.Processing)
	assert.InDelta(t, 30, mr.TTL("idem:t1:POST:/v1/endpoints:k1").Seconds(), 1)

	require.NoError(t, store.Save(ctx, "t1:POST:/v1/endpoints:k1", 201, []byte(`{"id":"ep_1"}`)))
	rec, found, err = store.GetOrLock(ctx, "t1:POST:/v1/endpoints:k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, rec.Processing)
	assert.Equal(t, 201, rec.Status)
	assert.JSONEq(t, `{"id":"ep_1"}`, string(rec.Body))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL("idem:t1:POST:/v1/endpoints:k1").Seconds(), 1)

	t.Run("unlock frees the key", func(t *testing.T) {
		_, _, err := store.GetOrLock(ctx, "k2")
		require.NoError(t, err)
		require.NoError(t, store.Unlock(ctx, "k2"))
		_, found, err := store.GetOrLock(ctx, "k2")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("abandoned lock expires quickly", func(t *testing.T) {
		_, _, err := store.GetOrLock(ctx, "k3")
		require.NoError(t, err)
		mr.FastForward(31 * time.Second)
		_, found, err := store.GetOrLock(ctx, "k3")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("saved response outlives the lock", func(t *testing.T) {
		_, _, err := store.GetOrLock(ctx, "k4")
		require.NoError(t, err)
		require.NoError(t, store.Save(ctx, "k4", 201, []byte(`{}`)))
		mr.FastForward(time.Minute)
		rec, found, err := store.GetOrLock(ctx, "k4")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 201, rec.Status)
	})
}
