// Package store provides counter storage backends for rate limiting.
package store

import (
	"context"
	"time"
)

// Store is a counter store with atomic per-key increments. Implementations
// must guarantee that IncrementWithExpiry is atomic for a single key; no
// cross-key transactions are ever required.
type Store interface {
	// Get retrieves the counter for the given key. Returns ErrKeyNotFound
	// if the key is absent or expired.
	Get(ctx context.Context, key string) (int64, error)

	// IncrementWithExpiry atomically increments the counter and sets the
	// expiration if the key is new. Returns the counter after increment.
	IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error)

	// Delete removes the key from the store.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the store.
	Close() error
}

// ErrKeyNotFound is returned when a key is not found in the store.
type ErrKeyNotFound struct {
	Key string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Key
}

// IsKeyNotFound reports whether err is an ErrKeyNotFound.
func IsKeyNotFound(err error) bool {
	_, ok := err.(*ErrKeyNotFound)
	return ok
}
