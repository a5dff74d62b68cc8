// Package session implements the refresh session registry: creation,
// rotation, revocation, and stolen-token reuse detection.
package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/domain"
	"github.com/newshub-app/newshub/backend/pkg/auth"
)

const sessionKeyPrefix = "session:"

type SessionRepository interface {
	CreateSession(ctx context.Context, s *domain.RefreshSession) error
	GetSessionByID(ctx context.Context, sessionID string) (*domain.RefreshSession, error)
	TryRevoke(ctx context.Context, sessionID string) (bool, error)
	RevokeDescendants(ctx context.Context, sessionID string) (int64, error)
	RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error
	GetUserSessionHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RefreshSession, error)
	DeleteExpiredSessions(ctx context.Context, grace time.Duration) (int64, error)
}

type CacheRepository interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// Registry tracks issued refresh sessions. Refresh credentials are opaque
// registry lookups rather than signed tokens, which is what makes server-side
// revocation and reuse detection possible at all.
type Registry struct {
	repo   SessionRepository
	cache  CacheRepository // optional, can be nil
	ttl    time.Duration
	grace  time.Duration
	logger *zap.Logger
}

func NewRegistry(repo SessionRepository, cache CacheRepository, ttl, grace time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{repo: repo, cache: cache, ttl: ttl, grace: grace, logger: logger}
}

// Create starts a new rotation chain for a user, typically on login.
func (r *Registry) Create(ctx context.Context, userID uuid.UUID, deviceInfo, ipAddress string) (*domain.RefreshSession, error) {
	now := time.Now()
	s := &domain.RefreshSession{
		SessionID:  auth.GenerateToken(),
		UserID:     userID,
		DeviceInfo: deviceInfo,
		IPAddress:  ipAddress,
		IssuedAt:   now,
		ExpiresAt:  now.Add(r.ttl),
	}
	if err := r.repo.CreateSession(ctx, s); err != nil {
		return nil, err
	}
	r.cacheSession(ctx, s)
	return s, nil
}

// Rotate exchanges a session for a successor. The presented session is
// revoked with a compare-and-set so that of two concurrent rotations only one
// can observe it as not-yet-revoked; the loser lands on the reuse path.
func (r *Registry) Rotate(ctx context.Context, sessionID string) (*domain.RefreshSession, error) {
	s, err := r.lookup(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}

	if s.Revoked {
		return nil, r.handleReuse(ctx, s)
	}
	if time.Now().After(s.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	won, err := r.repo.TryRevoke(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !won {
		// Someone else revoked it between the read and the CAS.
		return nil, r.handleReuse(ctx, s)
	}
	r.dropCached(ctx, sessionID)

	now := time.Now()
	child := &domain.RefreshSession{
		SessionID:       auth.GenerateToken(),
		UserID:          s.UserID,
		ParentSessionID: s.SessionID,
		RotationCounter: s.RotationCounter + 1,
		DeviceInfo:      s.DeviceInfo,
		IPAddress:       s.IPAddress,
		IssuedAt:        now,
		ExpiresAt:       now.Add(r.ttl),
	}
	if err := r.repo.CreateSession(ctx, child); err != nil {
		return nil, err
	}
	r.cacheSession(ctx, child)
	return child, nil
}

// handleReuse is the security path: a revoked session was presented again,
// which means either a benign double-submission or a stolen-token replay.
// Either way the whole chain descending from it is killed so a leaked refresh
// credential cannot keep minting access tokens.
func (r *Registry) handleReuse(ctx context.Context, s *domain.RefreshSession) error {
	revoked, err := r.repo.RevokeDescendants(ctx, s.SessionID)
	if err != nil {
		r.logger.Error("failed to revoke session chain after reuse",
			zap.String("session_id", s.SessionID), zap.Error(err))
		// Fall back to the blunter response rather than leaving the
		// chain alive.
		if err := r.repo.RevokeAllUserSessions(ctx, s.UserID); err != nil {
			return err
		}
	}

	r.logger.Warn("refresh session reuse detected, chain revoked",
		zap.String("session_id", s.SessionID),
		zap.String("user_id", s.UserID.String()),
		zap.Int("rotation_counter", s.RotationCounter),
		zap.Int64("descendants_revoked", revoked),
	)
	return domain.ErrSessionReuseDetected
}

// Revoke ends a session. Idempotent: revoking a missing or already-revoked
// session is not an error.
func (r *Registry) Revoke(ctx context.Context, sessionID string) error {
	if _, err := r.repo.TryRevoke(ctx, sessionID); err != nil {
		return err
	}
	r.dropCached(ctx, sessionID)
	return nil
}

// RevokeAll kills every session for a user ("logout everywhere", password
// change response).
func (r *Registry) RevokeAll(ctx context.Context, userID uuid.UUID) error {
	return r.repo.RevokeAllUserSessions(ctx, userID)
}

// History returns recent sessions for a user with device metadata.
func (r *Registry) History(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RefreshSession, error) {
	return r.repo.GetUserSessionHistory(ctx, userID, limit)
}

// Cleanup garbage-collects sessions past expiry plus the grace period.
func (r *Registry) Cleanup(ctx context.Context) (int64, error) {
	return r.repo.DeleteExpiredSessions(ctx, r.grace)
}

// lookup checks the cache before hitting the store. A stale cache entry is
// harmless: the revocation CAS in Rotate is always decided by the store.
func (r *Registry) lookup(ctx context.Context, sessionID string) (*domain.RefreshSession, error) {
	if r.cache != nil {
		data, err := r.cache.Get(ctx, sessionKeyPrefix+sessionID)
		if err == nil && data != "" {
			var s domain.RefreshSession
			if err := json.Unmarshal([]byte(data), &s); err == nil {
				return &s, nil
			}
		}
	}
	return r.repo.GetSessionByID(ctx, sessionID)
}

func (r *Registry) cacheSession(ctx context.Context, s *domain.RefreshSession) {
	if r.cache == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, sessionKeyPrefix+s.SessionID, data, time.Until(s.ExpiresAt)); err != nil {
		r.logger.Warn("failed to cache session", zap.Error(err))
	}
}

func (r *Registry) dropCached(ctx context.Context, sessionID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Del(ctx, sessionKeyPrefix+sessionID); err != nil {
		r.logger.Warn("failed to drop cached session", zap.Error(err))
	}
}
