package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/newshub-app/newshub/backend/internal/domain"
)

type SessionRepo struct {
	DB *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

const sessionSelectFields = `session_id, user_id, COALESCE(parent_session_id, ''), rotation_counter, device_info, ip_address, issued_at, expires_at, revoked`

func scanSession(row interface{ Scan(dest ...any) error }) (*domain.RefreshSession, error) {
	var s domain.RefreshSession
	err := row.Scan(
		&s.SessionID,
		&s.UserID,
		&s.ParentSessionID,
		&s.RotationCounter,
		&s.DeviceInfo,
		&s.IPAddress,
		&s.IssuedAt,
		&s.ExpiresAt,
		&s.Revoked,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSession inserts a new refresh session.
func (r *SessionRepo) CreateSession(ctx context.Context, s *domain.RefreshSession) error {
	var parent any
	if s.ParentSessionID != "" {
		parent = s.ParentSessionID
	}
	query := `
	INSERT INTO refresh_sessions (session_id, user_id, parent_session_id, rotation_counter, device_info, ip_address, issued_at, expires_at, revoked)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);
	`
	_, err := r.DB.ExecContext(ctx, query,
		s.SessionID, s.UserID, parent, s.RotationCounter, s.DeviceInfo, s.IPAddress, s.IssuedAt, s.ExpiresAt, s.Revoked)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetSessionByID retrieves a session by its opaque ID.
func (r *SessionRepo) GetSessionByID(ctx context.Context, sessionID string) (*domain.RefreshSession, error) {
	query := `SELECT ` + sessionSelectFields + ` FROM refresh_sessions WHERE session_id = $1;`
	s, err := scanSession(r.DB.QueryRowContext(ctx, query, sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// TryRevoke atomically flips revoked from false to true. Returns true only for
// the caller that won the flip; a concurrent rotation on the same session
// observes false and must treat the session as already revoked.
func (r *SessionRepo) TryRevoke(ctx context.Context, sessionID string) (bool, error) {
	query := `UPDATE refresh_sessions SET revoked = TRUE WHERE session_id = $1 AND revoked = FALSE;`
	result, err := r.DB.ExecContext(ctx, query, sessionID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// RevokeDescendants revokes every session reachable from the given one by
// following child links. Used on the reuse-detection path only; the common
// rotation path never walks the chain.
func (r *SessionRepo) RevokeDescendants(ctx context.Context, sessionID string) (int64, error) {
	query := `
	WITH RECURSIVE chain AS (
		SELECT session_id FROM refresh_sessions WHERE session_id = $1
		UNION ALL
		SELECT rs.session_id FROM refresh_sessions rs
		JOIN chain ON rs.parent_session_id = chain.session_id
	)
	UPDATE refresh_sessions SET revoked = TRUE
	WHERE session_id IN (SELECT session_id FROM chain) AND revoked = FALSE;
	`
	result, err := r.DB.ExecContext(ctx, query, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke session chain: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// RevokeAllUserSessions revokes every active session for a user.
func (r *SessionRepo) RevokeAllUserSessions(ctx context.Context, userID uuid.UUID) error {
	query := `UPDATE refresh_sessions SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE;`
	_, err := r.DB.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("failed to revoke user sessions: %w", err)
	}
	return nil
}

// GetUserSessionHistory retrieves recent sessions for a user.
func (r *SessionRepo) GetUserSessionHistory(ctx context.Context, userID uuid.UUID, limit int) ([]domain.RefreshSession, error) {
	query := `
	SELECT ` + sessionSelectFields + `
	FROM refresh_sessions
	WHERE user_id = $1
	ORDER BY issued_at DESC
	LIMIT $2;
	`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session history: %w", err)
	}
	defer rows.Close()

	var sessions []domain.RefreshSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	return sessions, nil
}

// DeleteExpiredSessions garbage-collects sessions past expiry plus grace.
func (r *SessionRepo) DeleteExpiredSessions(ctx context.Context, grace time.Duration) (int64, error) {
	query := `DELETE FROM refresh_sessions WHERE expires_at < NOW() - $1::interval;`
	result, err := r.DB.ExecContext(ctx, query, fmt.Sprintf("%f seconds", grace.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}
