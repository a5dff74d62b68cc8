package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("Secret123!", bcrypt.MinCost)
	require.NoError(t, err)
	require.NotEqual(t, "Secret123!", hash)

	assert.True(t, CheckPasswordHash("Secret123!", hash))
	assert.False(t, CheckPasswordHash("wrong-password", hash))
}

func TestValidatePasswordStrength(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{"valid mixed password", "Secret123!", false},
		{"valid letters only", "longenoughpassword", false},
		{"too short", "Ab1!", true},
		{"exactly eight chars", "abcd123x", false},
		{"purely numeric", "12345678", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePasswordStrength(tt.password)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGenerateToken_UniqueAndLong(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := GenerateToken()
		assert.Len(t, token, 64) // 32 bytes hex-encoded
		assert.False(t, seen[token], "token collision")
		seen[token] = true
	}
}
