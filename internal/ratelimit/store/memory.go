package store

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value      int64
	expiration time.Time
}

// MemoryStore implements Store with a mutex-guarded map. A janitor goroutine
// evicts expired counters so the tracked key set never grows unbounded.
type MemoryStore struct {
	mu     sync.Mutex
	data   map[string]*entry
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStore creates an in-memory store with a one-minute janitor.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithCleanupInterval(time.Minute)
}

// NewMemoryStoreWithCleanupInterval creates an in-memory store with a custom
// janitor interval.
func NewMemoryStoreWithCleanupInterval(interval time.Duration) *MemoryStore {
	s := &MemoryStore{
		data:   make(map[string]*entry),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	for {
		select {
		case <-s.done:
			return
		case <-s.ticker.C:
			now := time.Now()
			s.mu.Lock()
			for key, e := range s.data {
				if !e.expiration.IsZero() && now.After(e.expiration) {
					delete(s.data, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.data[key]
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}
	if !e.expiration.IsZero() && time.Now().After(e.expiration) {
		delete(s.data, key)
		return 0, &ErrKeyNotFound{Key: key}
	}
	return e.value, nil
}

// IncrementWithExpiry implements Store.
func (s *MemoryStore) IncrementWithExpiry(ctx context.Context, key string, delta int64, expiration time.Duration) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.data[key]
	if ok && !e.expiration.IsZero() && now.After(e.expiration) {
		ok = false
	}
	if !ok {
		e = &entry{}
		if expiration > 0 {
			e.expiration = now.Add(expiration)
		}
		s.data[key] = e
	}
	e.value += delta
	return e.value, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.done)
	})
	return nil
}
