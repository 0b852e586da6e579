package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
)

type PasswordResetRepositoryAdapter struct {
	db   *sql.DB
	salt string
}

func NewPasswordResetRepositoryAdapter(db *sql.DB, salt string) *PasswordResetRepositoryAdapter {
	return &PasswordResetRepositoryAdapter{db: db, salt: salt}
}

var _ outbound.PasswordResetRepository = (*PasswordResetRepositoryAdapter)(nil)

// Save keeps one token per email; a new request replaces the previous one.
func (r *PasswordResetRepositoryAdapter) Save(ctx context.Context, token *entity.PasswordResetToken) error {
	if token == nil || token.Email == "" || token.Token == "" {
		return fmt.Errorf("reset token email and value are required")
	}

	query := `
		INSERT INTO password_reset_tokens (token_hash, email, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET token_hash = EXCLUDED.token_hash,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := r.db.ExecContext(ctx, query, hashToken(token.Token, r.salt), token.Email, token.CreatedAt, token.ExpiresAt); err != nil {
		return fmt.Errorf("failed to save reset token: %w", err)
	}
	return nil
}

// Consume deletes and returns the row in one statement, so two concurrent
// redemptions of the same value cannot both succeed.
func (r *PasswordResetRepositoryAdapter) Consume(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	if token == "" {
		return nil, outbound.ErrResetTokenNotFound
	}

	query := `
		DELETE FROM password_reset_tokens
		WHERE token_hash = $1
		RETURNING email, created_at, expires_at
	`

	rt := entity.PasswordResetToken{Token: token}
	err := r.db.QueryRowContext(ctx, query, hashToken(token, r.salt)).Scan(&rt.Email, &rt.CreatedAt, &rt.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, outbound.ErrResetTokenNotFound
		}
		return nil, fmt.Errorf("failed to consume reset token: %w", err)
	}
	return &rt, nil
}

func (r *PasswordResetRepositoryAdapter) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to purge reset tokens: %w", err)
	}
	return result.RowsAffected()
}
