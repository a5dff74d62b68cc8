package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Mapping of codec failures. Callers are expected to distinguish an expired
// token from a tampered one, so parse errors are classified here instead of
// leaking jwt library internals.
var (
	ErrTokenMalformed = errors.New("token malformed")
	ErrTokenExpired   = errors.New("token expired")
	ErrBadSignature   = errors.New("token signature invalid")
)

// Claims represents JWT claims for access tokens.
type Claims struct {
	UserID    string `json:"user_id"`
	TokenType string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenCodec creates and parses self-contained access tokens. The signing key
// is loaded once at startup and never rotated mid-process.
type TokenCodec struct {
	secret    []byte
	accessTTL time.Duration
	leeway    time.Duration
}

func NewTokenCodec(secret string, accessTTL, leeway time.Duration) *TokenCodec {
	return &TokenCodec{
		secret:    []byte(secret),
		accessTTL: accessTTL,
		leeway:    leeway,
	}
}

// GenerateAccessToken creates a short-lived signed access token for a user.
func (c *TokenCodec) GenerateAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID:    userID.String(),
		TokenType: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(c.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(c.secret)
}

// ValidateAccessToken verifies signature and expiry and returns the claims.
// Validity is purely stateless; nothing is looked up.
func (c *TokenCodec) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadSignature
		}
		return c.secret, nil
	}, jwt.WithLeeway(c.leeway))

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrTokenMalformed
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.TokenType != "access" {
		return nil, ErrTokenMalformed
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// Subject returns the user ID embedded in validated claims.
func (cl *Claims) Subject() uuid.UUID {
	id, _ := uuid.Parse(cl.UserID)
	return id
}
