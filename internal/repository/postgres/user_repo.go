package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/newshub-app/newshub/backend/internal/domain"
)

type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userSelectFields = `id, email, name, password_hash, email_verified, created_at`

// scanUser is a helper that scans a row into a User struct.
func scanUser(row interface{ Scan(dest ...any) error }) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.PasswordHash,
		&user.EmailVerified,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateUser inserts a new user. Email uniqueness is enforced case-insensitively
// by the schema; callers should check for an existing user first to return a
// proper duplicate error before paying the insert.
func (r *UserRepo) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
	INSERT INTO users (id, email, name, password_hash, email_verified, created_at)
	VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID, user.Email, user.Name, user.PasswordHash, user.EmailVerified, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email, case-insensitively.
func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE LOWER(email) = LOWER($1);`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID.
func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = $1;`
	user, err := scanUser(r.DB.QueryRowContext(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// MarkVerified flips the email_verified flag.
func (r *UserRepo) MarkVerified(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE users SET email_verified = TRUE WHERE id = $1;`
	_, err := r.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to mark user verified: %w", err)
	}
	return nil
}

// SetPasswordHash replaces the stored password hash.
func (r *UserRepo) SetPasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	query := `UPDATE users SET password_hash = $2 WHERE id = $1;`
	_, err := r.DB.ExecContext(ctx, query, userID, hash)
	if err != nil {
		return fmt.Errorf("failed to set password hash: %w", err)
	}
	return nil
}

// UpdateName updates the display name.
func (r *UserRepo) UpdateName(ctx context.Context, userID uuid.UUID, name string) error {
	query := `UPDATE users SET name = $2 WHERE id = $1;`
	_, err := r.DB.ExecContext(ctx, query, userID, name)
	if err != nil {
		return fmt.Errorf("failed to update name: %w", err)
	}
	return nil
}
