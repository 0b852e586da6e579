package outbound

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidToken          = errors.New("invalid token")
	ErrTokenMalformed        = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrTokenSignatureInvalid = fmt.Errorf("%w: signature invalid", ErrInvalidToken)
	ErrTokenExpired          = fmt.Errorf("%w: expired", ErrInvalidToken)
)

type TokenClaims struct {
	UserID    int64     `json:"user_id"`
	TokenID   string    `json:"jti"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type TokenService interface {
	// GenerateAccessToken fills in TokenID, IssuedAt and ExpiresAt and
	// returns the signed token with the completed claims.
	GenerateAccessToken(claims TokenClaims) (string, *TokenClaims, error)
	ValidateAccessToken(token string) (*TokenClaims, error)
	// PeekTokenID reads the jti without verifying the token.
	PeekTokenID(token string) (string, error)
	GenerateRefreshToken() (string, error)
}
