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

// RefreshTokenRepositoryAdapter stores only a salted hash of each token.
type RefreshTokenRepositoryAdapter struct {
	db   *sql.DB
	salt string
}

func NewRefreshTokenRepositoryAdapter(db *sql.DB, salt string) *RefreshTokenRepositoryAdapter {
	return &RefreshTokenRepositoryAdapter{
		db:   db,
		salt: salt,
	}
}

var _ outbound.RefreshTokenRepository = (*RefreshTokenRepositoryAdapter)(nil)

// IssueFor upserts on user_id. The WHERE on the conflict branch keeps a late
// write from an earlier issue from replacing a newer row.
func (r *RefreshTokenRepositoryAdapter) IssueFor(ctx context.Context, token *entity.RefreshToken) error {
	if token == nil {
		return fmt.Errorf("refresh token cannot be nil")
	}
	if token.ID == "" || token.UserID == 0 || token.Token == "" {
		return fmt.Errorf("refresh token ID, user ID, and token are required")
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at, revoked, revoked_at)
		VALUES ($1, $2, $3, $4, $5, FALSE, NULL)
		ON CONFLICT (user_id) DO UPDATE
		SET id = EXCLUDED.id,
			token_hash = EXCLUDED.token_hash,
			issued_at = EXCLUDED.issued_at,
			expires_at = EXCLUDED.expires_at,
			revoked = FALSE,
			revoked_at = NULL
		WHERE refresh_tokens.issued_at <= EXCLUDED.issued_at
	`

	result, err := r.db.ExecContext(ctx, query,
		token.ID,
		token.UserID,
		hashToken(token.Token, r.salt),
		token.IssuedAt,
		token.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to issue refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return outbound.ErrRefreshTokenSuperseded
	}

	return nil
}

func (r *RefreshTokenRepositoryAdapter) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	if token == "" {
		return nil, outbound.ErrRefreshTokenNotFound
	}

	query := `
		SELECT id, user_id, issued_at, expires_at, revoked, revoked_at
		FROM refresh_tokens
		WHERE token_hash = $1
		LIMIT 1
	`

	var (
		refreshToken entity.RefreshToken
		revoked      bool
		revokedAt    sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, hashToken(token, r.salt)).Scan(
		&refreshToken.ID,
		&refreshToken.UserID,
		&refreshToken.IssuedAt,
		&refreshToken.ExpiresAt,
		&revoked,
		&revokedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, outbound.ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to find refresh token: %w", err)
	}

	switch {
	case revokedAt.Valid:
		refreshToken.RevokedAt = &revokedAt.Time
	case revoked:
		// flag without timestamp still counts as revoked
		refreshToken.RevokedAt = &refreshToken.IssuedAt
	}

	return &refreshToken, nil
}

func (r *RefreshTokenRepositoryAdapter) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $1
		WHERE user_id = $2 AND revoked = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, at, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens by user ID: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
