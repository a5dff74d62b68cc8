package domain

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	PasswordHash  string    `json:"-"`
	EmailVerified bool      `json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// PublicUser returns the JSON-friendly subset exposed to clients.
func (u *User) PublicUser() map[string]interface{} {
	return map[string]interface{}{
		"id":             u.ID.String(),
		"email":          u.Email,
		"name":           u.Name,
		"email_verified": u.EmailVerified,
	}
}
