package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
)

const revokedKeyPrefix = "auth:revoked:"

// RevocationRegistry keeps one key per revoked jti. Each key expires with
// the credential it denies, so Redis evicts entries on its own.
type RevocationRegistry struct {
	client *goredis.Client
	now    func() time.Time
}

var _ outbound.RevocationRegistry = (*RevocationRegistry)(nil)

func NewRevocationRegistry(client *goredis.Client) *RevocationRegistry {
	return &RevocationRegistry{client: client, now: time.Now}
}

// Revoke uses SETNX so a second revoke of the same id keeps the first entry.
func (r *RevocationRegistry) Revoke(ctx context.Context, token *entity.RevokedToken) error {
	if token == nil || token.TokenID == "" {
		return fmt.Errorf("revoked token ID is required")
	}

	ttl := token.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		// already expired; the codec rejects it anyway
		return nil
	}

	value := strconv.FormatInt(token.UserID, 10)
	if err := r.client.SetNX(ctx, revokedKeyPrefix+token.TokenID, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (r *RevocationRegistry) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKeyPrefix+tokenID).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, goredis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
}

// PurgeExpired is a no-op: key TTLs already evict expired entries.
func (r *RevocationRegistry) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return 0, nil
}
