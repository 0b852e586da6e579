package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/expensetrack/expensetrack/domain/entity"
)

var ErrResetTokenNotFound = errors.New("password reset token not found")

type PasswordResetRepository interface {
	// Save keeps at most one outstanding token per email.
	Save(ctx context.Context, token *entity.PasswordResetToken) error
	// Consume deletes the token and returns it. A second call with the
	// same value fails with ErrResetTokenNotFound.
	Consume(ctx context.Context, token string) (*entity.PasswordResetToken, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ResetNotifier hands a reset link to whatever delivers it to the user.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, email, link string, expiresAt time.Time) error
}
