// Package mailer defines the outbound email contract. Actual delivery is an
// external collaborator; only the token-bearing links are built here.
package mailer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/domain"
)

type Mailer interface {
	SendVerificationEmail(ctx context.Context, user *domain.User, token string) error
	SendPasswordResetEmail(ctx context.Context, user *domain.User, token string) error
	SendWelcomeEmail(ctx context.Context, user *domain.User) error
	SendPasswordChangedEmail(ctx context.Context, user *domain.User) error
}

// LogMailer records outgoing mail instead of delivering it. Deployments wire
// a real transport behind the same interface.
type LogMailer struct {
	frontendURL string
	logger      *zap.Logger
}

func NewLogMailer(frontendURL string, logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{frontendURL: frontendURL, logger: logger}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, user *domain.User, token string) error {
	link := fmt.Sprintf("%s/verify-email?token=%s", m.frontendURL, token)
	m.logger.Info("verification email queued",
		zap.String("to", user.Email),
		zap.String("link", link),
	)
	return nil
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, user *domain.User, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, token)
	m.logger.Info("password reset email queued",
		zap.String("to", user.Email),
		zap.String("link", link),
	)
	return nil
}

func (m *LogMailer) SendWelcomeEmail(ctx context.Context, user *domain.User) error {
	m.logger.Info("welcome email queued", zap.String("to", user.Email))
	return nil
}

func (m *LogMailer) SendPasswordChangedEmail(ctx context.Context, user *domain.User) error {
	m.logger.Info("password changed email queued", zap.String("to", user.Email))
	return nil
}
