package entity

import (
	"time"
)

// RevokedToken is a denylist entry for an access credential, keyed by its jti.
// It only matters until ExpiresAt; after that the credential fails on expiry anyway.
type RevokedToken struct {
	TokenID   string    `json:"token_id"`
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	RevokedAt time.Time `json:"revoked_at"`
}

func NewRevokedToken(tokenID string, userID int64, expiresAt, revokedAt time.Time) *RevokedToken {
	return &RevokedToken{
		TokenID:   tokenID,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: revokedAt,
	}
}

// IsActive reports whether the entry can still affect a request at now.
func (t *RevokedToken) IsActive(now time.Time) bool {
	return t.ExpiresAt.After(now)
}
