package valueobject

import "time"

const TokenTypeBearer = "Bearer"

type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

func NewTokenPair(accessToken, refreshToken string, accessExpiresAt, refreshExpiresAt time.Time) *TokenPair {
	return &TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}
}

// ExpiresIn returns the whole seconds left on the access token at now.
func (p *TokenPair) ExpiresIn(now time.Time) int {
	return secondsUntil(p.AccessExpiresAt, now)
}

func (p *TokenPair) RefreshExpiresIn(now time.Time) int {
	return secondsUntil(p.RefreshExpiresAt, now)
}

func secondsUntil(t, now time.Time) int {
	d := t.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(d / time.Second)
}
