package entity

import (
	"time"
)

const PasswordResetTTL = 15 * time.Minute

type PasswordResetToken struct {
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewPasswordResetToken(email, token string, createdAt time.Time, ttl time.Duration) *PasswordResetToken {
	if ttl <= 0 {
		ttl = PasswordResetTTL
	}
	return &PasswordResetToken{
		Email:     email,
		Token:     token,
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(ttl),
	}
}

func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
