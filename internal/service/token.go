package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ipetrenko/tokensvc/internal/models"
	"github.com/ipetrenko/tokensvc/internal/util"
)

var (
	ErrTokenInvalid         = errors.New("token invalid")
	ErrInvalidSigningMethod = errors.New("invalid signing method")
)

type TokenService struct {
	jwtSecretKey []byte
	accessTTL    time.Duration
}

func NewTokenService(cfg *util.TokenConfig) *TokenService {
	return &TokenService{
		jwtSecretKey: cfg.JwtSecretKey,
		accessTTL:    cfg.AccessTTL,
	}
}

// AccessClaims is the self-contained payload of an access token. The JTI
// (RegisteredClaims.ID) binds the token to the refresh record minted with it.
type AccessClaims struct {
	PrincipalID string `json:"uid"`
	Email       string `json:"email"`
	jwt.RegisteredClaims
}

// CreateAccessToken mints a HS512 signed access token with a fresh JTI.
func (ts *TokenService) CreateAccessToken(p *models.Principal, now time.Time) (string, string, error) {
	jti := uuid.NewString()
	signedToken, err := ts.CreateAccessTokenWithJTI(p, now, jti)
	if err != nil {
		return "", "", err
	}
	return signedToken, jti, nil
}

// CreateAccessTokenWithJTI mints a HS512 signed access token with the given JTI.
func (ts *TokenService) CreateAccessTokenWithJTI(p *models.Principal, now time.Time, jti string) (string, error) {
	claims := &AccessClaims{
		PrincipalID: p.ID,
		Email:       p.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.accessTTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	signedToken, err := token.SignedString(ts.jwtSecretKey)
	if err != nil {
		return "", fmt.Errorf("signed string: %w", err)
	}

	return signedToken, nil
}

// DecodeAccessToken verifies structure, signature and signing algorithm.
// It intentionally skips claims validation: the refresh flow is invoked
// with an access token that is already expired, so expiry is inspected by
// the caller, not rejected here.
func (ts *TokenService) DecodeAccessToken(tokenString string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithoutClaimsValidation(),
	}

	parsedToken, err := jwt.ParseWithClaims(
		tokenString,
		&AccessClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
				return nil, ErrInvalidSigningMethod
			}
			return ts.jwtSecretKey, nil
		},
		opts...,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTokenInvalid, err)
	}

	claims, ok := parsedToken.Claims.(*AccessClaims)
	if !ok || claims.PrincipalID == "" || claims.ExpiresAt == nil {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}

// NewRefreshToken produces the opaque refresh token value. The random prefix
// is combined with a UUID so a collision needs both sources to collide.
func (ts *TokenService) NewRefreshToken() (string, error) {
	prefix, err := RandomString(util.RefreshTokenRandomLength)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return prefix + uuid.NewString(), nil
}
