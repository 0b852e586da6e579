package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
)

const testSalt = "pepper"

func TestRefreshTokenRepository_IssueFor(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)
	now := time.Now()
	token := entity.NewRefreshToken("id-1", 5, "raw-token", now, 30*24*time.Hour)

	mock.ExpectExec(`(?s)INSERT INTO refresh_tokens .*ON CONFLICT \(user_id\) DO UPDATE.*WHERE refresh_tokens\.issued_at <= EXCLUDED\.issued_at`).
		WithArgs("id-1", int64(5), hashToken("raw-token", testSalt), now, token.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.IssueFor(context.Background(), token))
}

func TestRefreshTokenRepository_IssueFor_Superseded(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)
	token := entity.NewRefreshToken("id-1", 5, "raw-token", time.Now(), time.Hour)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.IssueFor(context.Background(), token), outbound.ErrRefreshTokenSuperseded)
}

func TestRefreshTokenRepository_IssueFor_Invalid(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)

	assert.Error(t, repo.IssueFor(context.Background(), nil))
	assert.Error(t, repo.IssueFor(context.Background(), &entity.RefreshToken{ID: "x"}))
}

func TestRefreshTokenRepository_FindByToken(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT id, user_id, issued_at, expires_at, revoked, revoked_at\s+FROM refresh_tokens\s+WHERE token_hash = \$1`).
		WithArgs(hashToken("raw-token", testSalt)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "issued_at", "expires_at", "revoked", "revoked_at"}).
			AddRow("id-1", int64(5), now, now.Add(time.Hour), false, nil))

	rt, err := repo.FindByToken(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.Equal(t, int64(5), rt.UserID)
	assert.False(t, rt.IsRevoked())
	assert.Empty(t, rt.Token)
}

func TestRefreshTokenRepository_FindByToken_RevokedFlagOnly(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, user_id`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "issued_at", "expires_at", "revoked", "revoked_at"}).
			AddRow("id-1", int64(5), now, now.Add(time.Hour), true, nil))

	rt, err := repo.FindByToken(context.Background(), "raw-token")
	require.NoError(t, err)
	assert.True(t, rt.IsRevoked())
}

func TestRefreshTokenRepository_FindByToken_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)

	mock.ExpectQuery(`SELECT id, user_id`).WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByToken(context.Background(), "raw-token")
	assert.ErrorIs(t, err, outbound.ErrRefreshTokenNotFound)

	_, err = repo.FindByToken(context.Background(), "")
	assert.ErrorIs(t, err, outbound.ErrRefreshTokenNotFound)
}

func TestRefreshTokenRepository_RevokeAllForUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepositoryAdapter(db, testSalt)
	at := time.Now()

	mock.ExpectExec(`(?s)UPDATE refresh_tokens\s+SET revoked = TRUE, revoked_at = \$1\s+WHERE user_id = \$2 AND revoked = FALSE`).
		WithArgs(at, int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := repo.RevokeAllForUser(context.Background(), 5, at)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRevocationRegistry(t *testing.T) {
	db, mock := newMockDB(t)
	registry := NewRevocationRegistryAdapter(db)
	now := time.Now()
	entry := entity.NewRevokedToken("jti-1", 5, now.Add(time.Minute), now)

	mock.ExpectExec(`(?s)INSERT INTO revoked_tokens .*ON CONFLICT \(token_id\) DO NOTHING`).
		WithArgs("jti-1", int64(5), entry.ExpiresAt, entry.RevokedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM revoked_tokens WHERE token_id = \$1 AND expires_at > NOW\(\)\)`).
		WithArgs("jti-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec(`DELETE FROM revoked_tokens WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, registry.Revoke(context.Background(), entry))

	revoked, err := registry.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	n, err := registry.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRevocationRegistry_Unavailable(t *testing.T) {
	db, mock := newMockDB(t)
	registry := NewRevocationRegistryAdapter(db)

	mock.ExpectQuery(`SELECT EXISTS`).WillReturnError(errors.New("connection refused"))

	_, err := registry.IsRevoked(context.Background(), "jti-1")
	assert.Error(t, err)
}

func TestPasswordResetRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPasswordResetRepositoryAdapter(db, testSalt)
	now := time.Now()
	token := entity.NewPasswordResetToken("ann@example.com", "reset-raw", now, 15*time.Minute)

	mock.ExpectExec(`(?s)INSERT INTO password_reset_tokens .*ON CONFLICT \(email\) DO UPDATE`).
		WithArgs(hashToken("reset-raw", testSalt), "ann@example.com", now, token.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)DELETE FROM password_reset_tokens\s+WHERE token_hash = \$1\s+RETURNING email, created_at, expires_at`).
		WithArgs(hashToken("reset-raw", testSalt)).
		WillReturnRows(sqlmock.NewRows([]string{"email", "created_at", "expires_at"}).
			AddRow("ann@example.com", now, token.ExpiresAt))
	mock.ExpectQuery(`DELETE FROM password_reset_tokens`).
		WithArgs(hashToken("reset-raw", testSalt)).
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, repo.Save(context.Background(), token))

	consumed, err := repo.Consume(context.Background(), "reset-raw")
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", consumed.Email)
	assert.Equal(t, "reset-raw", consumed.Token)

	_, err = repo.Consume(context.Background(), "reset-raw")
	assert.ErrorIs(t, err, outbound.ErrResetTokenNotFound)
}

func TestHashToken(t *testing.T) {
	assert.Equal(t, hashToken("a", "s"), hashToken("a", "s"))
	assert.NotEqual(t, hashToken("a", "s"), hashToken("a", "t"))
	assert.Len(t, hashToken("a", "s"), 32)
}
