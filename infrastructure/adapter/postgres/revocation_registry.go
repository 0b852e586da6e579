package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
)

type RevocationRegistryAdapter struct {
	db *sql.DB
}

func NewRevocationRegistryAdapter(db *sql.DB) *RevocationRegistryAdapter {
	return &RevocationRegistryAdapter{db: db}
}

var _ outbound.RevocationRegistry = (*RevocationRegistryAdapter)(nil)

func (r *RevocationRegistryAdapter) Revoke(ctx context.Context, token *entity.RevokedToken) error {
	if token == nil || token.TokenID == "" {
		return fmt.Errorf("revoked token ID is required")
	}

	query := `
		INSERT INTO revoked_tokens (token_id, user_id, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (token_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, token.TokenID, token.UserID, token.ExpiresAt, token.RevokedAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// IsRevoked skips entries past their expiry even if the sweeper has not run.
func (r *RevocationRegistryAdapter) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var revoked bool
	query := `SELECT EXISTS(SELECT 1 FROM revoked_tokens WHERE token_id = $1 AND expires_at > NOW())`
	if err := r.db.QueryRowContext(ctx, query, tokenID).Scan(&revoked); err != nil {
		return false, fmt.Errorf("failed to check revoked token: %w", err)
	}
	return revoked, nil
}

func (r *RevocationRegistryAdapter) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge revoked tokens: %w", err)
	}
	return result.RowsAffected()
}
