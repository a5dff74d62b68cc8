package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose scopes a single-use token to exactly one flow.
type TokenPurpose string

const (
	PurposeEmailVerification TokenPurpose = "email_verification"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

// SingleUseToken is a one-time credential carried inside emailed links.
// It transitions from unconsumed to consumed exactly once.
type SingleUseToken struct {
	Token     string       `json:"token"`
	UserID    uuid.UUID    `json:"user_id"`
	Purpose   TokenPurpose `json:"purpose"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt time.Time    `json:"expires_at"`
	Consumed  bool         `json:"consumed"`
}