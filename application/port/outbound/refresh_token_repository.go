package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/expensetrack/expensetrack/domain/entity"
)

var (
	ErrRefreshTokenNotFound   = errors.New("refresh token not found")
	ErrRefreshTokenSuperseded = errors.New("refresh token superseded by a newer issue")
)

type RefreshTokenRepository interface {
	// IssueFor stores token as the only renewal token of token.UserID,
	// replacing any previous one in a single atomic step. A write whose
	// IssuedAt is older than the stored row fails with ErrRefreshTokenSuperseded.
	IssueFor(ctx context.Context, token *entity.RefreshToken) error
	FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error)
	// RevokeAllForUser marks every live token of the user revoked and
	// returns how many rows changed.
	RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error)
}
