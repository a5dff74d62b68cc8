package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newshub-app/newshub/backend/internal/domain"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.RefreshSession
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.RefreshSession)}
}

func (r *fakeSessionRepo) CreateSession(_ context.Context, s *domain.RefreshSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.SessionID] = &cp
	return nil
}

func (r *fakeSessionRepo) GetSessionByID(_ context.Context, sessionID string) (*domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) TryRevoke(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Revoked {
		return false, nil
	}
	s.Revoked = true
	return true, nil
}

func (r *fakeSessionRepo) RevokeDescendants(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	frontier := map[string]bool{sessionID: true}
	for len(frontier) > 0 {
		next := make(map[string]bool)
		for _, s := range r.sessions {
			if frontier[s.ParentSessionID] {
				next[s.SessionID] = true
				if !s.Revoked {
					s.Revoked = true
					n++
				}
			}
		}
		frontier = next
	}
	if s, ok := r.sessions[sessionID]; ok && !s.Revoked {
		s.Revoked = true
		n++
	}
	return n, nil
}

func (r *fakeSessionRepo) RevokeAllUserSessions(_ context.Context, userID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.UserID == userID {
			s.Revoked = true
		}
	}
	return nil
}

func (r *fakeSessionRepo) GetUserSessionHistory(_ context.Context, userID uuid.UUID, limit int) ([]domain.RefreshSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.RefreshSession
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, *s)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) DeleteExpiredSessions(_ context.Context, grace time.Duration) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	cutoff := time.Now().Add(-grace)
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

func newTestRegistry(repo *fakeSessionRepo) *Registry {
	return NewRegistry(repo, nil, 24*time.Hour, 24*time.Hour, nil)
}

func TestRegistry_CreateAndRotate(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()
	userID := uuid.New()

	first, err := reg.Create(ctx, userID, "Chrome on Linux", "10.0.0.1")
	require.NoError(t, err)
	assert.Len(t, first.SessionID, 64)
	assert.Zero(t, first.RotationCounter)
	assert.Empty(t, first.ParentSessionID)

	second, err := reg.Rotate(ctx, first.SessionID)
	require.NoError(t, err)
	assert.NotEqual(t, first.SessionID, second.SessionID)
	assert.Equal(t, first.SessionID, second.ParentSessionID)
	assert.Equal(t, 1, second.RotationCounter)
	assert.Equal(t, first.DeviceInfo, second.DeviceInfo)
	assert.Equal(t, first.IPAddress, second.IPAddress)

	// The presented session is spent.
	stored, err := repo.GetSessionByID(ctx, first.SessionID)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
}

func TestRegistry_RotateUnknownSession(t *testing.T) {
	reg := newTestRegistry(newFakeSessionRepo())

	_, err := reg.Rotate(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistry_RotateExpiredSession(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()

	s, err := reg.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	repo.mu.Lock()
	repo.sessions[s.SessionID].ExpiresAt = time.Now().Add(-time.Minute)
	repo.mu.Unlock()

	_, err = reg.Rotate(ctx, s.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionExpired)
}

func TestRegistry_ReuseDetectionKillsChain(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()
	userID := uuid.New()

	first, err := reg.Create(ctx, userID, "", "")
	require.NoError(t, err)

	second, err := reg.Rotate(ctx, first.SessionID)
	require.NoError(t, err)

	third, err := reg.Rotate(ctx, second.SessionID)
	require.NoError(t, err)

	// Presenting the already-spent first session is treated as theft.
	_, err = reg.Rotate(ctx, first.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionReuseDetected)

	// Every descendant is dead, including the current tail.
	for _, id := range []string{first.SessionID, second.SessionID, third.SessionID} {
		s, err := repo.GetSessionByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, s.Revoked, "session %s should be revoked", id)
	}

	_, err = reg.Rotate(ctx, third.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionReuseDetected)
}

func TestRegistry_ConcurrentRotateSingleWinner(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()

	s, err := reg.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	const goroutines = 8
	var wg sync.WaitGroup
	var winners int64
	var mu sync.Mutex

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := reg.Rotate(ctx, s.SessionID); err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, winners, int64(1), "at most one rotation may succeed")
}

func TestRegistry_RevokeIsIdempotent(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()

	s, err := reg.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	require.NoError(t, reg.Revoke(ctx, s.SessionID))
	require.NoError(t, reg.Revoke(ctx, s.SessionID))
	require.NoError(t, reg.Revoke(ctx, "never-existed"))

	_, err = reg.Rotate(ctx, s.SessionID)
	assert.ErrorIs(t, err, domain.ErrSessionReuseDetected)
}

func TestRegistry_RevokeAll(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()
	userID := uuid.New()

	a, err := reg.Create(ctx, userID, "laptop", "10.0.0.1")
	require.NoError(t, err)
	b, err := reg.Create(ctx, userID, "phone", "10.0.0.2")
	require.NoError(t, err)

	other, err := reg.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	require.NoError(t, reg.RevokeAll(ctx, userID))

	for _, id := range []string{a.SessionID, b.SessionID} {
		s, err := repo.GetSessionByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, s.Revoked)
	}

	// Other users are untouched.
	s, err := repo.GetSessionByID(ctx, other.SessionID)
	require.NoError(t, err)
	assert.False(t, s.Revoked)
}

func TestRegistry_Cleanup(t *testing.T) {
	repo := newFakeSessionRepo()
	reg := newTestRegistry(repo)
	ctx := context.Background()

	live, err := reg.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)

	stale, err := reg.Create(ctx, uuid.New(), "", "")
	require.NoError(t, err)
	repo.mu.Lock()
	repo.sessions[stale.SessionID].ExpiresAt = time.Now().Add(-48 * time.Hour)
	repo.mu.Unlock()

	n, err := reg.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	s, err := repo.GetSessionByID(ctx, live.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, s)
}
