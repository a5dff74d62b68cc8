// Package ratelimit provides fixed-window request limiting for the
// authentication endpoints. Counters live in a pluggable store so a single
// process can use memory while multi-process deployments share Redis.
package ratelimit

import (
	"context"
	"time"
)

// Limiter gates requests per client key.
type Limiter interface {
	// Allow checks whether one request is admitted for the given key.
	Allow(ctx context.Context, key string) (*Result, error)

	// Reset clears the counter for the given key.
	Reset(ctx context.Context, key string) error
}

// Result is the outcome of a rate limit check.
type Result struct {
	// Allowed indicates whether the request may proceed.
	Allowed bool

	// Limit is the maximum number of requests per window.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long to wait before the window resets. Zero when
	// the request is allowed.
	RetryAfter time.Duration
}
