package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/storage"
	"github.com/ipetrenko/tokensvc/internal/storage/memory"
	"github.com/ipetrenko/tokensvc/internal/util"
)

func newTestAuthService(t *testing.T, store storage.Storage) (*AuthService, *TokenService) {
	t.Helper()

	cfg := &util.TokenConfig{
		JwtSecretKey:      []byte("auth-test-secret"),
		AccessTTL:         40 * time.Second,
		RefreshTTL:        180 * 24 * time.Hour,
		EligibilityWindow: 10 * time.Second,
	}
	log := zap.NewNop().Sugar()
	tokens := NewTokenService(cfg)
	webhook := NewWebhookService(log, "")

	return NewAuthService(cfg, tokens, store, webhook, log), tokens
}

func registerPrincipal(t *testing.T, store *memory.Storage) *models.Principal {
	t.Helper()

	p, err := store.CreatePrincipal(context.Background(), "bob@example.com", "bob", "$2a$10$fakehash")
	require.NoError(t, err)
	return p
}

// issueEligiblePair builds a pair whose access token is already expired, so
// it passes the eligibility stage of the refresh pipeline.
func issueEligiblePair(t *testing.T, tokens *TokenService, store storage.RefreshRecordRepository, p *models.Principal) (accessToken, refreshToken string, recordID int64) {
	t.Helper()
	ctx := context.Background()
	issuedAt := time.Now().UTC().Add(-time.Hour)

	jti := uuid.NewString()
	accessToken, err := tokens.CreateAccessTokenWithJTI(p, issuedAt, jti)
	require.NoError(t, err)

	refreshToken, err = tokens.NewRefreshToken()
	require.NoError(t, err)

	recordID, err = store.CreateRecord(ctx, models.RefreshRecord{
		OwnerID:   p.ID,
		Token:     refreshToken,
		BoundJTI:  jti,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(180 * 24 * time.Hour),
	})
	require.NoError(t, err)

	return accessToken, refreshToken, recordID
}

func TestIssueTokens_PersistsBoundRecord(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)

	pair, err := auth.IssueTokens(ctx, p)
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	claims, err := tokens.DecodeAccessToken(pair.AccessToken)
	require.NoError(t, err)

	record, err := store.FindRecordByToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, p.ID, record.OwnerID)
	assert.Equal(t, claims.ID, record.BoundJTI)
	assert.False(t, record.IsUsed)
	assert.False(t, record.IsRevoked)
	assert.WithinDuration(t, record.IssuedAt.Add(180*24*time.Hour), record.ExpiresAt, time.Second)
}

func TestRefresh_NotYetEligible(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, _ := newTestAuthService(t, store)
	p := registerPrincipal(t, store)

	// A freshly issued access token still has its whole TTL ahead, which
	// exceeds the 10s eligibility window of the test config.
	pair, err := auth.IssueTokens(ctx, p)
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, pair.AccessToken, pair.RefreshToken)
	require.ErrorIs(t, err, ErrTokenNotYetEligible)
}

func TestRefresh_RotatesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)
	accessToken, refreshToken, _ := issueEligiblePair(t, tokens, store, p)

	pair, err := auth.Refresh(ctx, accessToken, refreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, refreshToken, pair.RefreshToken, "rotation must mint a new refresh token")
	assert.NotEmpty(t, pair.AccessToken)

	old, err := store.FindRecordByToken(ctx, refreshToken)
	require.NoError(t, err)
	assert.True(t, old.IsUsed)

	_, err = auth.Refresh(ctx, accessToken, refreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenAlreadyUsed)
}

func TestRefresh_ConcurrentRedemptionsSingleWinner(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)
	accessToken, refreshToken, _ := issueEligiblePair(t, tokens, store, p)

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = auth.Refresh(ctx, accessToken, refreshToken)
		}(i)
	}
	wg.Wait()

	var won, replayed int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		default:
			require.ErrorIs(t, err, ErrRefreshTokenAlreadyUsed)
			replayed++
		}
	}
	assert.Equal(t, 1, won, "exactly one concurrent redemption must succeed")
	assert.Equal(t, attempts-1, replayed)
}

func TestRefresh_BindingMismatch(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)

	accessOne, _, _ := issueEligiblePair(t, tokens, store, p)
	_, refreshTwo, _ := issueEligiblePair(t, tokens, store, p)

	_, err := auth.Refresh(ctx, accessOne, refreshTwo)
	require.ErrorIs(t, err, ErrTokenBindingMismatch)
}

func TestRefresh_Revoked(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)
	accessToken, refreshToken, _ := issueEligiblePair(t, tokens, store, p)

	require.NoError(t, auth.Revoke(ctx, refreshToken))

	_, err := auth.Refresh(ctx, accessToken, refreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenRevoked)

	// Revocation is permanent, retrying does not help.
	_, err = auth.Refresh(ctx, accessToken, refreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenRevoked)
}

func TestRefresh_RecordExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)

	issuedAt := time.Now().UTC().Add(-time.Hour)
	jti := uuid.NewString()
	accessToken, err := tokens.CreateAccessTokenWithJTI(p, issuedAt, jti)
	require.NoError(t, err)

	refreshToken, err := tokens.NewRefreshToken()
	require.NoError(t, err)

	_, err = store.CreateRecord(ctx, models.RefreshRecord{
		OwnerID:   p.ID,
		Token:     refreshToken,
		BoundJTI:  jti,
		IssuedAt:  issuedAt,
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, accessToken, refreshToken)
	require.ErrorIs(t, err, ErrRefreshTokenExpired)
}

func TestRefresh_UnknownRefreshToken(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)
	accessToken, _, _ := issueEligiblePair(t, tokens, store, p)

	_, err := auth.Refresh(ctx, accessToken, "no-such-refresh-token")
	require.ErrorIs(t, err, ErrRefreshTokenUnknown)
}

// countingStorage counts record lookups so tests can assert that invalid
// access tokens are rejected before the store is touched.
type countingStorage struct {
	storage.Storage
	lookups int32
}

func (c *countingStorage) FindRecordByToken(ctx context.Context, token string) (*models.RefreshRecord, error) {
	atomic.AddInt32(&c.lookups, 1)
	return c.Storage.FindRecordByToken(ctx, token)
}

func TestRefresh_ForeignTokenRejectedBeforeLookup(t *testing.T) {
	ctx := context.Background()
	store := &countingStorage{Storage: memory.NewStorage()}
	auth, _ := newTestAuthService(t, store)

	foreign := NewTokenService(&util.TokenConfig{
		JwtSecretKey: []byte("someone-elses-secret"),
		AccessTTL:    40 * time.Second,
	})
	accessToken, _, err := foreign.CreateAccessToken(testPrincipal(), time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)

	_, err = auth.Refresh(ctx, accessToken, "irrelevant")
	require.ErrorIs(t, err, ErrTokenInvalid)
	assert.Zero(t, atomic.LoadInt32(&store.lookups), "invalid tokens must not reach the store")
}

func TestRefresh_PrincipalGone(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, store)
	accessToken, refreshToken, _ := issueEligiblePair(t, tokens, store, p)

	store.DeletePrincipal(ctx, p.ID)

	_, err := auth.Refresh(ctx, accessToken, refreshToken)
	require.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, _ := newTestAuthService(t, store)

	pair, err := auth.Register(ctx, "carol@example.com", "carol", "s3cret-pass")
	require.NoError(t, err)
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	_, err = auth.Register(ctx, "carol@example.com", "carol2", "another-pass")
	require.ErrorIs(t, err, ErrEmailTaken)

	loginPair, err := auth.Login(ctx, "carol@example.com", "s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, loginPair.RefreshToken)

	_, err = auth.Login(ctx, "carol@example.com", "wrong-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, "nobody@example.com", "s3cret-pass")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

// faultyStorage panics on record lookup, standing in for a storage layer
// bug that must not crash the process.
type faultyStorage struct {
	storage.Storage
}

func (f *faultyStorage) FindRecordByToken(ctx context.Context, token string) (*models.RefreshRecord, error) {
	panic("storage invariant violated")
}

func TestRefresh_StoragePanicBecomesInternalError(t *testing.T) {
	ctx := context.Background()
	backing := memory.NewStorage()
	store := &faultyStorage{Storage: backing}
	auth, tokens := newTestAuthService(t, store)
	p := registerPrincipal(t, backing)
	accessToken, refreshToken, _ := issueEligiblePair(t, tokens, backing, p)

	pair, err := auth.Refresh(ctx, accessToken, refreshToken)
	require.ErrorIs(t, err, ErrInternal)
	assert.Nil(t, pair)
}

func TestRevoke_UnknownToken(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStorage()
	auth, _ := newTestAuthService(t, store)

	err := auth.Revoke(ctx, "never-issued")
	require.ErrorIs(t, err, ErrRefreshTokenUnknown)
}
