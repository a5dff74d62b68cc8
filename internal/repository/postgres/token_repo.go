package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/newshub-app/newshub/backend/internal/domain"
)

type TokenRepo struct {
	DB *sql.DB
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{DB: db}
}

// CreateToken inserts a new single-use token.
func (r *TokenRepo) CreateToken(ctx context.Context, t *domain.SingleUseToken) error {
	query := `
	INSERT INTO single_use_tokens (token, user_id, purpose, created_at, expires_at, consumed)
	VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.DB.ExecContext(ctx, query,
		t.Token, t.UserID, string(t.Purpose), t.CreatedAt, t.ExpiresAt, t.Consumed)
	if err != nil {
		return fmt.Errorf("failed to create single-use token: %w", err)
	}
	return nil
}

// GetToken retrieves a token by its value.
func (r *TokenRepo) GetToken(ctx context.Context, token string) (*domain.SingleUseToken, error) {
	query := `
	SELECT token, user_id, purpose, created_at, expires_at, consumed
	FROM single_use_tokens
	WHERE token = $1;
	`
	var t domain.SingleUseToken
	err := r.DB.QueryRowContext(ctx, query, token).Scan(
		&t.Token, &t.UserID, &t.Purpose, &t.CreatedAt, &t.ExpiresAt, &t.Consumed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get single-use token: %w", err)
	}
	return &t, nil
}

// TryConsume atomically flips consumed from false to true. Only one of two
// concurrent redemption attempts can observe the flip.
func (r *TokenRepo) TryConsume(ctx context.Context, token string) (bool, error) {
	query := `UPDATE single_use_tokens SET consumed = TRUE WHERE token = $1 AND consumed = FALSE;`
	result, err := r.DB.ExecContext(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("failed to consume single-use token: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// InvalidateUserTokens marks all unconsumed tokens of a purpose as consumed,
// so only one live token per purpose per user exists at a time.
func (r *TokenRepo) InvalidateUserTokens(ctx context.Context, userID uuid.UUID, purpose domain.TokenPurpose) error {
	query := `UPDATE single_use_tokens SET consumed = TRUE WHERE user_id = $1 AND purpose = $2 AND consumed = FALSE;`
	_, err := r.DB.ExecContext(ctx, query, userID, string(purpose))
	if err != nil {
		return fmt.Errorf("failed to invalidate user tokens: %w", err)
	}
	return nil
}

// DeleteExpiredTokens garbage-collects tokens past expiry.
func (r *TokenRepo) DeleteExpiredTokens(ctx context.Context) (int64, error) {
	query := `DELETE FROM single_use_tokens WHERE expires_at < NOW();`
	result, err := r.DB.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
