package models

import "time"

// RefreshRecord is the stored form of an issued refresh token.
// BoundJTI ties the record to the access token minted alongside it:
// redemption requires presenting exactly that access token.
// IsUsed transitions false -> true exactly once and never reverts.
type RefreshRecord struct {
	ID        int64     `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Token     string    `json:"token"`
	BoundJTI  string    `json:"bound_jti"`
	IsUsed    bool      `json:"is_used"`
	IsRevoked bool      `json:"is_revoked"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// TokenPair is what issuance and rotation hand back to the caller.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}
