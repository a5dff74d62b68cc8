// Package token issues and consumes short-lived single-use tokens for email
// verification and password reset.
package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/domain"
	"github.com/newshub-app/newshub/backend/pkg/auth"
)

type TokenRepository interface {
	CreateToken(ctx context.Context, t *domain.SingleUseToken) error
	GetToken(ctx context.Context, token string) (*domain.SingleUseToken, error)
	TryConsume(ctx context.Context, token string) (bool, error)
	InvalidateUserTokens(ctx context.Context, userID uuid.UUID, purpose domain.TokenPurpose) error
	DeleteExpiredTokens(ctx context.Context) (int64, error)
}

type Service struct {
	repo      TokenRepository
	verifyTTL time.Duration
	resetTTL  time.Duration
	logger    *zap.Logger
}

func NewService(repo TokenRepository, verifyTTL, resetTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, verifyTTL: verifyTTL, resetTTL: resetTTL, logger: logger}
}

func (s *Service) ttl(purpose domain.TokenPurpose) time.Duration {
	if purpose == domain.PurposePasswordReset {
		return s.resetTTL
	}
	return s.verifyTTL
}

// Issue creates a fresh token, invalidating any prior unconsumed token of the
// same purpose so only one live token per purpose per user exists.
func (s *Service) Issue(ctx context.Context, userID uuid.UUID, purpose domain.TokenPurpose) (*domain.SingleUseToken, error) {
	if err := s.repo.InvalidateUserTokens(ctx, userID, purpose); err != nil {
		return nil, err
	}

	now := time.Now()
	t := &domain.SingleUseToken{
		Token:     auth.GenerateToken(),
		UserID:    userID,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl(purpose)),
	}
	if err := s.repo.CreateToken(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Consume redeems a token exactly once. Under concurrent redemption only one
// caller observes the unconsumed-to-consumed transition; the other gets
// ErrSingleUseAlreadyUsed, never a silent success or failure.
func (s *Service) Consume(ctx context.Context, tokenValue string, purpose domain.TokenPurpose) (uuid.UUID, error) {
	t, err := s.repo.GetToken(ctx, tokenValue)
	if err != nil {
		return uuid.Nil, err
	}
	if t == nil {
		return uuid.Nil, domain.ErrSingleUseNotFound
	}
	if t.Purpose != purpose {
		return uuid.Nil, domain.ErrPurposeMismatch
	}
	if t.Consumed {
		return uuid.Nil, domain.ErrSingleUseAlreadyUsed
	}
	if time.Now().After(t.ExpiresAt) {
		return uuid.Nil, domain.ErrSingleUseExpired
	}

	ok, err := s.repo.TryConsume(ctx, tokenValue)
	if err != nil {
		return uuid.Nil, err
	}
	if !ok {
		// Lost the race against a concurrent redemption.
		return uuid.Nil, domain.ErrSingleUseAlreadyUsed
	}

	s.logger.Info("single-use token consumed",
		zap.String("user_id", t.UserID.String()),
		zap.String("purpose", string(purpose)),
	)
	return t.UserID, nil
}

// Cleanup garbage-collects expired tokens.
func (s *Service) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteExpiredTokens(ctx)
}
