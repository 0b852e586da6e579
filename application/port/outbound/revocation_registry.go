package outbound

import (
	"context"
	"time"

	"github.com/expensetrack/expensetrack/domain/entity"
)

// RevocationRegistry is the denylist of access token ids revoked before expiry.
type RevocationRegistry interface {
	// Revoke is idempotent; revoking an id twice is a no-op.
	Revoke(ctx context.Context, token *entity.RevokedToken) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}
