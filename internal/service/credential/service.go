// Package credential owns user identity: registration, password
// verification, and the email-verified flag.
package credential

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/newshub-app/newshub/backend/internal/domain"
	"github.com/newshub-app/newshub/backend/pkg/auth"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	MarkVerified(ctx context.Context, userID uuid.UUID) error
	SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
	UpdateName(ctx context.Context, userID uuid.UUID, name string) error
}

type Service struct {
	repo       UserRepository
	bcryptCost int
	logger     *zap.Logger
}

func NewService(repo UserRepository, bcryptCost int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, bcryptCost: bcryptCost, logger: logger}
}

// NormalizeEmail lowercases and trims an email for case-insensitive matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new, unverified user. The caller is responsible for
// issuing the verification token and dispatching the email.
func (s *Service) Register(ctx context.Context, email, name, password string) (*domain.User, error) {
	email = NormalizeEmail(email)

	if err := auth.ValidatePasswordStrength(password); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrWeakPassword, err.Error())
	}

	existing, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateEmail
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:            uuid.New(),
		Email:         email,
		Name:          strings.TrimSpace(name),
		PasswordHash:  hash,
		EmailVerified: false,
		CreatedAt:     time.Now(),
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// VerifyPassword authenticates an email/password pair. The same error is
// returned for an unknown email and a wrong password.
func (s *Service) VerifyPassword(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !auth.CheckPasswordHash(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

// GetByEmail looks a user up without authenticating.
func (s *Service) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
}

// GetByID looks a user up by ID.
func (s *Service) GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// MarkVerified flips the email_verified flag after token consumption.
func (s *Service) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	return s.repo.MarkVerified(ctx, userID)
}

// SetPassword validates strength, hashes, and stores a new password.
func (s *Service) SetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if err := auth.ValidatePasswordStrength(newPassword); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrWeakPassword, err.Error())
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return s.repo.SetPasswordHash(ctx, userID, hash)
}

// ChangePassword verifies the current password before storing the new one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, currentPassword, newPassword string) error {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !auth.CheckPasswordHash(currentPassword, user.PasswordHash) {
		return domain.ErrInvalidCredentials
	}
	return s.SetPassword(ctx, userID, newPassword)
}

// UpdateName changes the display name.
func (s *Service) UpdateName(ctx context.Context, userID uuid.UUID, name string) error {
	return s.repo.UpdateName(ctx, userID, strings.TrimSpace(name))
}
