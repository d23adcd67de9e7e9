package controller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/service"
	"github.com/ipetrenko/tokensvc/internal/storage/memory"
	"github.com/ipetrenko/tokensvc/internal/util"
)

func newTestController(t *testing.T) (*Controller, *service.TokenService, *memory.Storage) {
	t.Helper()

	cfg := &util.TokenConfig{
		JwtSecretKey:      []byte("controller-test-secret"),
		AccessTTL:         40 * time.Second,
		RefreshTTL:        180 * 24 * time.Hour,
		EligibilityWindow: 10 * time.Second,
	}
	log := zap.NewNop().Sugar()
	store := memory.NewStorage()
	tokens := service.NewTokenService(cfg)
	auth := service.NewAuthService(cfg, tokens, store, service.NewWebhookService(log, ""), log)

	return NewController(log, auth), tokens, store
}

func postJSON(e *echo.Echo, path, body string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRegisterLoginRefreshFlow(t *testing.T) {
	e := echo.New()
	c, tokens, store := newTestController(t)

	ctx, rec := postJSON(e, "/api/auth/register", `{"email":"dave@example.com","username":"dave","password":"hunter22"}`)
	require.NoError(t, c.Register(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var pair models.TokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	// A fresh access token is rejected by the eligibility stage.
	ctx, _ = postJSON(e, "/api/auth/refresh",
		`{"access_token":"`+pair.AccessToken+`","refresh_token":"`+pair.RefreshToken+`"}`)
	err := c.Refresh(ctx)
	require.ErrorIs(t, err, service.ErrTokenNotYetEligible)

	// An expired one rotates.
	p, err := store.FindByEmail(context.Background(), "dave@example.com")
	require.NoError(t, err)

	jti := uuid.NewString()
	expiredAccess, err := tokens.CreateAccessTokenWithJTI(p, time.Now().UTC().Add(-time.Hour), jti)
	require.NoError(t, err)
	refresh, err := tokens.NewRefreshToken()
	require.NoError(t, err)
	_, err = store.CreateRecord(context.Background(), models.RefreshRecord{
		OwnerID:   p.ID,
		Token:     refresh,
		BoundJTI:  jti,
		IssuedAt:  time.Now().UTC().Add(-time.Hour),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	ctx, rec = postJSON(e, "/api/auth/refresh",
		`{"access_token":"`+expiredAccess+`","refresh_token":"`+refresh+`"}`)
	require.NoError(t, c.Refresh(ctx))
	require.Equal(t, http.StatusOK, rec.Code)

	var rotated models.TokenPairResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, refresh, rotated.RefreshToken)

	// Replaying the consumed token fails.
	ctx, _ = postJSON(e, "/api/auth/refresh",
		`{"access_token":"`+expiredAccess+`","refresh_token":"`+refresh+`"}`)
	err = c.Refresh(ctx)
	require.ErrorIs(t, err, service.ErrRefreshTokenAlreadyUsed)
}

func TestRefresh_MissingFields(t *testing.T) {
	e := echo.New()
	c, _, _ := newTestController(t)

	ctx, _ := postJSON(e, "/api/auth/refresh", `{"access_token":"only-one"}`)
	err := c.Refresh(ctx)

	var respErr util.ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, http.StatusBadRequest, respErr.Status)
	assert.Equal(t, "access_token and refresh_token are required", respErr.Msg)
}

func TestRevokeEndpoint(t *testing.T) {
	e := echo.New()
	c, tokens, store := newTestController(t)

	refresh, err := tokens.NewRefreshToken()
	require.NoError(t, err)
	_, err = store.CreateRecord(context.Background(), models.RefreshRecord{
		OwnerID:   "owner-1",
		Token:     refresh,
		BoundJTI:  "jti-1",
		IssuedAt:  time.Now().UTC(),
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	})
	require.NoError(t, err)

	ctx, rec := postJSON(e, "/api/auth/revoke", `{"refresh_token":"`+refresh+`"}`)
	require.NoError(t, c.Revoke(ctx))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	record, err := store.FindRecordByToken(context.Background(), refresh)
	require.NoError(t, err)
	assert.True(t, record.IsRevoked)
}
