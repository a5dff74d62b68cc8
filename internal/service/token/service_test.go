package token

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

type fakeTokenRepo struct {
	mu     sync.Mutex
	tokens map[string]*domain.SingleUseToken
}

func newFakeTokenRepo() *fakeTokenRepo {
	return &fakeTokenRepo{tokens: make(map[string]*domain.SingleUseToken)}
}

func (r *fakeTokenRepo) CreateToken(_ context.Context, t *domain.SingleUseToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tokens[t.Token] = &cp
	return nil
}

func (r *fakeTokenRepo) GetToken(_ context.Context, token string) (*domain.SingleUseToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTokenRepo) TryConsume(_ context.Context, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[token]
	if !ok || t.Consumed {
		return false, nil
	}
	t.Consumed = true
	return true, nil
}

func (r *fakeTokenRepo) InvalidateUserTokens(_ context.Context, userID uuid.UUID, purpose domain.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.tokens {
		if t.UserID == userID && t.Purpose == purpose && !t.Consumed {
			t.Consumed = true
		}
	}
	return nil
}

func (r *fakeTokenRepo) DeleteExpiredTokens(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for key, t := range r.tokens {
		if now.After(t.ExpiresAt) {
			delete(r.tokens, key)
			n++
		}
	}
	return n, nil
}

func newTestService(repo *fakeTokenRepo) *Service {
	return NewService(repo, 24*time.Hour, 2*time.Hour, nil)
}

func TestService_IssueAndConsume(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.New()

	tok, err := svc.Issue(ctx, userID, domain.PurposeEmailVerification)
	require.NoError(t, err)
	assert.Len(t, tok.Token, 64)

	gotUserID, err := svc.Consume(ctx, tok.Token, domain.PurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, userID, gotUserID)
}

func TestService_ConsumeTwice(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, uuid.New(), domain.PurposeEmailVerification)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, tok.Token, domain.PurposeEmailVerification)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, tok.Token, domain.PurposeEmailVerification)
	assert.ErrorIs(t, err, domain.ErrSingleUseAlreadyUsed)
}

func TestService_ConsumeUnknownToken(t *testing.T) {
	svc := newTestService(newFakeTokenRepo())

	_, err := svc.Consume(context.Background(), "deadbeef", domain.PurposePasswordReset)
	assert.ErrorIs(t, err, domain.ErrSingleUseNotFound)
}

func TestService_ConsumePurposeMismatch(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, uuid.New(), domain.PurposeEmailVerification)
	require.NoError(t, err)

	// A verification token cannot reset a password.
	_, err = svc.Consume(ctx, tok.Token, domain.PurposePasswordReset)
	assert.ErrorIs(t, err, domain.ErrPurposeMismatch)

	// The mismatch attempt did not burn the token.
	_, err = svc.Consume(ctx, tok.Token, domain.PurposeEmailVerification)
	assert.NoError(t, err)
}

func TestService_ConsumeExpired(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, uuid.New(), domain.PurposePasswordReset)
	require.NoError(t, err)

	repo.mu.Lock()
	repo.tokens[tok.Token].ExpiresAt = time.Now().Add(-time.Minute)
	repo.mu.Unlock()

	_, err = svc.Consume(ctx, tok.Token, domain.PurposePasswordReset)
	assert.ErrorIs(t, err, domain.ErrSingleUseExpired)
}

func TestService_IssueInvalidatesPrior(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.New()

	first, err := svc.Issue(ctx, userID, domain.PurposePasswordReset)
	require.NoError(t, err)

	second, err := svc.Issue(ctx, userID, domain.PurposePasswordReset)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = svc.Consume(ctx, first.Token, domain.PurposePasswordReset)
	assert.ErrorIs(t, err, domain.ErrSingleUseAlreadyUsed)

	_, err = svc.Consume(ctx, second.Token, domain.PurposePasswordReset)
	assert.NoError(t, err)
}

func TestService_IssueDifferentPurposesCoexist(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	userID := uuid.New()

	verify, err := svc.Issue(ctx, userID, domain.PurposeEmailVerification)
	require.NoError(t, err)

	reset, err := svc.Issue(ctx, userID, domain.PurposePasswordReset)
	require.NoError(t, err)

	// Issuing a reset token does not touch the verification token.
	_, err = svc.Consume(ctx, verify.Token, domain.PurposeEmailVerification)
	assert.NoError(t, err)
	_, err = svc.Consume(ctx, reset.Token, domain.PurposePasswordReset)
	assert.NoError(t, err)
}

func TestService_ConcurrentConsume(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	tok, err := svc.Issue(ctx, uuid.New(), domain.PurposeEmailVerification)
	require.NoError(t, err)

	const goroutines = 16
	var wg sync.WaitGroup
	var successes int64
	var successMu sync.Mutex

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Consume(ctx, tok.Token, domain.PurposeEmailVerification); err == nil {
				successMu.Lock()
				successes++
				successMu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes, "exactly one redemption must win")
}

func TestService_Cleanup(t *testing.T) {
	repo := newFakeTokenRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	live, err := svc.Issue(ctx, uuid.New(), domain.PurposeEmailVerification)
	require.NoError(t, err)

	stale, err := svc.Issue(ctx, uuid.New(), domain.PurposeEmailVerification)
	require.NoError(t, err)
	repo.mu.Lock()
	repo.tokens[stale.Token].ExpiresAt = time.Now().Add(-time.Hour)
	repo.mu.Unlock()

	n, err := svc.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = svc.Consume(ctx, live.Token, domain.PurposeEmailVerification)
	assert.NoError(t, err)
}
