package domain

import (
	"time"

	"github.com/google/uuid"
)

// RefreshSession is a server-tracked refresh credential. The session ID is
// opaque and registry-backed so it can be revoked; it is never a signed token.
type RefreshSession struct {
	SessionID       string    `json:"session_id"`
	UserID          uuid.UUID `json:"user_id"`
	ParentSessionID string    `json:"parent_session_id,omitempty"`
	RotationCounter int       `json:"rotation_counter"`
	DeviceInfo      string    `json:"device_info"`
	IPAddress       string    `json:"ip_address"`
	IssuedAt        time.Time `json:"issued_at"`
	ExpiresAt       time.Time `json:"expires_at"`
	Revoked         bool      `json:"revoked"`
}

// Active reports whether the session can still be rotated.
func (s *RefreshSession) Active(now time.Time) bool {
	return !s.Revoked && now.Before(s.ExpiresAt)
}
