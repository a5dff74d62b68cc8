package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_IncrementWithExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	val, err := s.IncrementWithExpiry(ctx, "counter", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)

	val, err = s.IncrementWithExpiry(ctx, "counter", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)

	val, err = s.Get(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, int64(2), val)
}

func TestMemoryStore_GetMissingKey(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, IsKeyNotFound(err))
}

func TestMemoryStore_Expiration(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "short", 1, 20*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	_, err = s.Get(ctx, "short")
	assert.True(t, IsKeyNotFound(err))

	// A fresh increment after expiry starts the counter over.
	val, err := s.IncrementWithExpiry(ctx, "short", 1, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), val)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "counter", 3, time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "counter"))

	_, err = s.Get(ctx, "counter")
	assert.True(t, IsKeyNotFound(err))

	// Deleting an absent key is not an error.
	require.NoError(t, s.Delete(ctx, "counter"))
}

func TestMemoryStore_JanitorEvicts(t *testing.T) {
	s := NewMemoryStoreWithCleanupInterval(10 * time.Millisecond)
	defer s.Close()
	ctx := context.Background()

	_, err := s.IncrementWithExpiry(ctx, "evictme", 1, 10*time.Millisecond)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, ok := s.data["evictme"]
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryStore_CloseIsIdempotent(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
