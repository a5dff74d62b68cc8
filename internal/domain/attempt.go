package domain

import "time"

// LoginAttempt is an audit record of a login, successful or not.
// Kept even for unknown emails so brute-force sweeps are visible.
type LoginAttempt struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	IPAddress   string    `json:"ip_address"`
	UserAgent   string    `json:"user_agent"`
	Successful  bool      `json:"successful"`
	AttemptedAt time.Time `json:"attempted_at"`
}
