package inbound

import (
	"context"
	"time"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Identifier string `json:"identifier"`
	// Email is accepted as an alias of Identifier.
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) LoginIdentifier() string {
	if r.Identifier != "" {
		return r.Identifier
	}
	return r.Email
}

type UserSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	AccessToken      string      `json:"access_token"`
	RefreshToken     string      `json:"refresh_token"`
	TokenType        string      `json:"token_type"`
	ExpiresIn        int         `json:"expires_in"`
	RefreshExpiresIn int         `json:"refresh_expires_in"`
	User             UserSummary `json:"user"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type LogoutRequest struct {
	AccessToken string `json:"-"`
}

type CheckEmailResponse struct {
	Exists bool `json:"exists"`
}

// Identity is what the request edge attaches to the context once a bearer
// token has been verified and resolved to a user.
type Identity struct {
	UserID    int64
	Email     string
	Role      string
	TokenID   string
	ExpiresAt time.Time
}

type AuthUseCase interface {
	Register(ctx context.Context, req RegisterRequest) (*LoginResponse, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Refresh(ctx context.Context, req RefreshRequest) (*RefreshResponse, error)
	Logout(ctx context.Context, req LogoutRequest) error
	Me(ctx context.Context, userID int64) (*UserSummary, error)
	// Authenticate resolves a raw bearer token. It returns ErrTokenRevoked for
	// a denylisted token and ErrInvalidToken for anything that should be
	// treated as unauthenticated.
	Authenticate(ctx context.Context, rawToken string) (*Identity, error)
	CheckEmail(ctx context.Context, email string) (*CheckEmailResponse, error)
}
