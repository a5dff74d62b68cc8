package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/newshub-app/newshub/backend/internal/domain"
)

type AttemptRepo struct {
	DB *sql.DB
}

func NewAttemptRepo(db *sql.DB) *AttemptRepo {
	return &AttemptRepo{DB: db}
}

// RecordAttempt writes a login audit row.
func (r *AttemptRepo) RecordAttempt(ctx context.Context, a *domain.LoginAttempt) error {
	query := `
	INSERT INTO login_attempts (email, ip_address, user_agent, successful)
	VALUES ($1, $2, $3, $4);
	`
	_, err := r.DB.ExecContext(ctx, query, a.Email, a.IPAddress, a.UserAgent, a.Successful)
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}
