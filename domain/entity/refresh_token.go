package entity

import (
	"time"
)

// RefreshToken is the long-lived renewal credential. At most one live token
// exists per user; issuing a new one replaces the previous row.
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    int64      `json:"user_id"`
	Token     string     `json:"-"`
	IssuedAt  time.Time  `json:"issued_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

func NewRefreshToken(id string, userID int64, token string, issuedAt time.Time, ttl time.Duration) *RefreshToken {
	return &RefreshToken{
		ID:        id,
		UserID:    userID,
		Token:     token,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
}

// IsExpired reports whether the token is no longer usable at now.
// A token is valid only while expires-at is strictly after now.
func (rt *RefreshToken) IsExpired(now time.Time) bool {
	return !rt.ExpiresAt.After(now)
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) Revoke(at time.Time) {
	if rt.RevokedAt != nil {
		return
	}
	rt.RevokedAt = &at
}
