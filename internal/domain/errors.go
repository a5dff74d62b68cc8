package domain

import "errors"

// Sentinel errors returned by the auth services. The HTTP layer maps these to
// status codes; anything not listed here is treated as an infrastructure
// failure and surfaced as a 500 rather than masked as an auth failure.
var (
	// Credential store.
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password does not meet strength requirements")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")

	// Session registry.
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionExpired       = errors.New("session expired")
	ErrSessionReuseDetected = errors.New("revoked session presented again")

	// Single-use tokens.
	ErrSingleUseNotFound    = errors.New("single-use token not found")
	ErrSingleUseExpired     = errors.New("single-use token expired")
	ErrSingleUseAlreadyUsed = errors.New("single-use token already used")
	ErrPurposeMismatch      = errors.New("single-use token purpose mismatch")
)
