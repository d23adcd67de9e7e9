package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/storage"
	"github.com/ipetrenko/tokensvc/internal/util"
)

var (
	ErrTokenNotYetEligible     = errors.New("access token not yet eligible for refresh")
	ErrRefreshTokenUnknown     = errors.New("refresh token unknown")
	ErrRefreshTokenAlreadyUsed = errors.New("refresh token already used")
	ErrRefreshTokenRevoked     = errors.New("refresh token revoked")
	ErrTokenBindingMismatch    = errors.New("refresh token does not match access token")
	ErrRefreshTokenExpired     = errors.New("refresh token expired")
	ErrPrincipalNotFound       = errors.New("principal not found")
	ErrInvalidCredentials      = errors.New("invalid credentials")
	ErrEmailTaken              = errors.New("email already registered")
	ErrStoreUnavailable        = errors.New("store unavailable")
	ErrInternal                = errors.New("internal error")
)

type AuthService struct {
	refreshTTL        time.Duration
	eligibilityWindow time.Duration
	tokens            *TokenService
	storage           storage.Storage
	webhook           *WebhookService
	log               *zap.SugaredLogger
}

func NewAuthService(
	cfg *util.TokenConfig,
	tokens *TokenService,
	storage storage.Storage,
	webhook *WebhookService,
	log *zap.SugaredLogger,
) *AuthService {
	return &AuthService{
		refreshTTL:        cfg.RefreshTTL,
		eligibilityWindow: cfg.EligibilityWindow,
		tokens:            tokens,
		storage:           storage,
		webhook:           webhook,
		log:               log,
	}
}

// IssueTokens mints a fresh access/refresh pair for the principal and
// durably persists the refresh record before returning. The record carries
// the JTI of the access token it was minted with.
func (s *AuthService) IssueTokens(ctx context.Context, p *models.Principal) (*models.TokenPair, error) {
	now := time.Now().UTC()

	accessToken, jti, err := s.tokens.CreateAccessToken(p, now)
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refreshToken, err := s.tokens.NewRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	record := models.RefreshRecord{
		OwnerID:   p.ID,
		Token:     refreshToken,
		BoundJTI:  jti,
		IsUsed:    false,
		IsRevoked: false,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}
	if _, err := s.storage.CreateRecord(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: persist refresh record: %s", ErrStoreUnavailable, err)
	}

	return &models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh runs the ordered validation pipeline over a presented
// access/refresh pair and either rotates the pair or fails with the most
// specific applicable reason. Order matters: later stages assume earlier
// ones hold (claim inspection assumes a valid signature, the used check
// assumes the record exists).
//
// Whatever happens inside, the pipeline returns an error instead of
// crashing the process.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (pair *models.TokenPair, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("panic during token refresh", "panic", r)
			pair, err = nil, ErrInternal
		}
	}()

	now := time.Now().UTC()

	// Stages 1-2: structure, signature and signing algorithm.
	claims, err := s.tokens.DecodeAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	// Stage 3: the access token must be at or past its natural expiry,
	// within the grace window. Refreshing a token with ample life left
	// would defeat the short-TTL policy.
	if claims.ExpiresAt.Time.After(now.Add(s.eligibilityWindow)) {
		return nil, ErrTokenNotYetEligible
	}

	// Stage 4: the record must exist.
	record, err := s.storage.FindRecordByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return nil, ErrRefreshTokenUnknown
		}
		return nil, fmt.Errorf("%w: find refresh record: %s", ErrStoreUnavailable, err)
	}

	// Stage 5: single-use. A used token presented again is a replay.
	if record.IsUsed {
		s.notifyReplay(ctx, record)
		return nil, ErrRefreshTokenAlreadyUsed
	}

	// Stage 6: administrative revocation is permanent.
	if record.IsRevoked {
		return nil, ErrRefreshTokenRevoked
	}

	// Stage 7: the refresh token only redeems alongside the access token
	// it was issued with.
	if claims.ID != record.BoundJTI {
		return nil, ErrTokenBindingMismatch
	}

	// Stage 8: the record itself expires too.
	if now.After(record.ExpiresAt) {
		return nil, ErrRefreshTokenExpired
	}

	// Stage 9: rotation. The guarded update is the commit point; of two
	// concurrent redemptions exactly one passes here.
	won, err := s.storage.CompareAndMarkUsed(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: mark record used: %s", ErrStoreUnavailable, err)
	}
	if !won {
		s.notifyReplay(ctx, record)
		return nil, ErrRefreshTokenAlreadyUsed
	}

	principal, err := s.storage.FindByID(ctx, record.OwnerID)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			return nil, ErrPrincipalNotFound
		}
		return nil, fmt.Errorf("%w: find principal: %s", ErrStoreUnavailable, err)
	}

	return s.IssueTokens(ctx, principal)
}

// Register creates a principal and immediately issues its first token pair.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*models.TokenPair, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	p, err := s.storage.CreatePrincipal(ctx, email, username, string(hash))
	if err != nil {
		if errors.Is(err, storage.ErrEmailTaken) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("%w: create principal: %s", ErrStoreUnavailable, err)
	}

	s.log.Infow("principal registered", "principalID", p.ID)
	return s.IssueTokens(ctx, p)
}

// Login verifies credentials and issues a pair. Unknown email and wrong
// password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.TokenPair, error) {
	p, err := s.storage.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrPrincipalNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: find principal: %s", ErrStoreUnavailable, err)
	}

	if !s.storage.VerifyPassword(p, password) {
		return nil, ErrInvalidCredentials
	}

	return s.IssueTokens(ctx, p)
}

// Revoke permanently blocks a refresh record from redemption. The record is
// flagged, never deleted.
func (s *AuthService) Revoke(ctx context.Context, refreshToken string) error {
	if err := s.storage.RevokeRecord(ctx, refreshToken); err != nil {
		if errors.Is(err, storage.ErrRecordNotFound) {
			return ErrRefreshTokenUnknown
		}
		return fmt.Errorf("%w: revoke record: %s", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *AuthService) notifyReplay(ctx context.Context, record *models.RefreshRecord) {
	s.log.Warnw("refresh token replay detected",
		"recordID", record.ID,
		"principalID", record.OwnerID,
	)
	s.webhook.NotifyReplayAttempt(ctx, map[string]interface{}{
		"event":        "refresh_token_replay",
		"record_id":    record.ID,
		"principal_id": record.OwnerID,
		"issued_at":    record.IssuedAt,
	})
}
