package ratelimit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/ratelimit/store"
)

// FixedWindowLimiter counts requests in aligned fixed windows. Each window is
// a distinct store key carrying its own TTL, so stale windows expire on their
// own and no unbounded per-client state accumulates.
type FixedWindowLimiter struct {
	store  store.Store
	limit  int
	window time.Duration
	logger *zap.Logger

	// now is swapped in tests to step across window boundaries.
	now func() time.Time
}

func NewFixedWindowLimiter(s store.Store, limit int, window time.Duration, logger *zap.Logger) *FixedWindowLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FixedWindowLimiter{
		store:  s,
		limit:  limit,
		window: window,
		logger: logger,
		now:    time.Now,
	}
}

// windowStart truncates t down to the start of its window.
func (l *FixedWindowLimiter) windowStart(t time.Time) time.Time {
	return t.Truncate(l.window)
}

// Allow implements Limiter.
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) (*Result, error) {
	now := l.now()
	start := l.windowStart(now)
	windowEnd := start.Add(l.window)

	// Key the counter by window start so every window is its own entry.
	bucketKey := fmt.Sprintf("%s:%d", key, start.Unix())

	count, err := l.store.IncrementWithExpiry(ctx, bucketKey, 1, windowEnd.Sub(now))
	if err != nil {
		return nil, fmt.Errorf("rate limit increment failed: %w", err)
	}

	result := &Result{
		Allowed:   count <= int64(l.limit),
		Limit:     l.limit,
		Remaining: l.limit - int(count),
	}
	if result.Remaining < 0 {
		result.Remaining = 0
	}
	if !result.Allowed {
		result.RetryAfter = windowEnd.Sub(now)
		l.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Duration("retry_after", result.RetryAfter),
		)
	}

	return result, nil
}

// Reset implements Limiter.
func (l *FixedWindowLimiter) Reset(ctx context.Context, key string) error {
	start := l.windowStart(l.now())
	bucketKey := fmt.Sprintf("%s:%d", key, start.Unix())
	return l.store.Delete(ctx, bucketKey)
}
