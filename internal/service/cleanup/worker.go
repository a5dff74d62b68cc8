// Package cleanup runs the periodic garbage collection of expired refresh
// sessions and single-use tokens.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type SessionCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type TokenCleaner interface {
	Cleanup(ctx context.Context) (int64, error)
}

type Worker struct {
	sessions SessionCleaner
	tokens   TokenCleaner
	interval time.Duration
	logger   *zap.Logger
}

func NewWorker(sessions SessionCleaner, tokens TokenCleaner, interval time.Duration, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{sessions: sessions, tokens: tokens, interval: interval, logger: logger}
}

// Start runs the cleanup loop until the context is canceled. It runs one pass
// immediately so restarts don't postpone GC by a full interval.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("cleanup worker started", zap.Duration("interval", w.interval))
	w.run(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			w.run(ctx)
		}
	}
}

func (w *Worker) run(ctx context.Context) {
	if n, err := w.sessions.Cleanup(ctx); err != nil {
		w.logger.Error("session cleanup failed", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("expired sessions removed", zap.Int64("count", n))
	}

	if n, err := w.tokens.Cleanup(ctx); err != nil {
		w.logger.Error("token cleanup failed", zap.Error(err))
	} else if n > 0 {
		w.logger.Info("expired tokens removed", zap.Int64("count", n))
	}
}
