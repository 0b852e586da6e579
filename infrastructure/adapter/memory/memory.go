// Package memory implements the auth repositories in process memory for
// development and tests.
package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
)

// DB holds every table behind one mutex.
type DB struct {
	mu            sync.Mutex
	users         []*entity.User
	refreshTokens map[int64]*entity.RefreshToken
	revoked       map[string]*entity.RevokedToken
	resetTokens   map[string]*entity.PasswordResetToken

	userIDCounter int64
	now           func() time.Time
}

func New() *DB {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests move time for the lazy expiry filter in IsRevoked.
func NewWithClock(now func() time.Time) *DB {
	return &DB{
		refreshTokens: make(map[int64]*entity.RefreshToken),
		revoked:       make(map[string]*entity.RevokedToken),
		resetTokens:   make(map[string]*entity.PasswordResetToken),
		now:           now,
	}
}

type (
	UserRepo          struct{ db *DB }
	RefreshTokenRepo  struct{ db *DB }
	RevocationRepo    struct{ db *DB }
	PasswordResetRepo struct{ db *DB }
)

var (
	_ outbound.UserRepository          = (*UserRepo)(nil)
	_ outbound.RefreshTokenRepository  = (*RefreshTokenRepo)(nil)
	_ outbound.RevocationRegistry      = (*RevocationRepo)(nil)
	_ outbound.PasswordResetRepository = (*PasswordResetRepo)(nil)
)

func (db *DB) Users() *UserRepo                 { return &UserRepo{db: db} }
func (db *DB) RefreshTokens() *RefreshTokenRepo { return &RefreshTokenRepo{db: db} }
func (db *DB) Revocations() *RevocationRepo     { return &RevocationRepo{db: db} }
func (db *DB) ResetTokens() *PasswordResetRepo  { return &PasswordResetRepo{db: db} }

// --- UserRepository ---

func (r *UserRepo) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, outbound.ErrUserNotFound
}

// FindByIdentifier scans in id order so the lowest id wins.
func (r *UserRepo) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, identifier) ||
			(u.Username != "" && u.Username == identifier) ||
			(u.Phone != "" && u.Phone == identifier) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, outbound.ErrUserNotFound
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, outbound.ErrUserNotFound
}

func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, outbound.ErrUserNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Create assigns the next id. Email, username and phone are unique.
func (r *UserRepo) Create(ctx context.Context, user *entity.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if strings.EqualFold(u.Email, user.Email) ||
			(user.Username != "" && u.Username == user.Username) ||
			(user.Phone != "" && u.Phone == user.Phone) {
			return outbound.ErrUserAlreadyExists
		}
	}

	r.db.userIDCounter++
	user.ID = r.db.userIDCounter
	cp := *user
	r.db.users = append(r.db.users, &cp)
	return nil
}

func (r *UserRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, u := range r.db.users {
		if u.ID == id {
			u.Password = passwordHash
			u.UpdatedAt = r.db.now().UTC()
			return nil
		}
	}
	return outbound.ErrUserNotFound
}

// --- RefreshTokenRepository ---

// IssueFor keeps one row per user. An older issue never replaces a newer one.
func (r *RefreshTokenRepo) IssueFor(ctx context.Context, token *entity.RefreshToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if current, ok := r.db.refreshTokens[token.UserID]; ok && current.IssuedAt.After(token.IssuedAt) {
		return outbound.ErrRefreshTokenSuperseded
	}
	cp := *token
	cp.RevokedAt = nil
	r.db.refreshTokens[token.UserID] = &cp
	return nil
}

func (r *RefreshTokenRepo) FindByToken(ctx context.Context, token string) (*entity.RefreshToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for _, rt := range r.db.refreshTokens {
		if rt.Token == token {
			cp := *rt
			return &cp, nil
		}
	}
	return nil, outbound.ErrRefreshTokenNotFound
}

func (r *RefreshTokenRepo) RevokeAllForUser(ctx context.Context, userID int64, at time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for _, rt := range r.db.refreshTokens {
		if rt.UserID == userID && !rt.IsRevoked() {
			rt.Revoke(at)
			n++
		}
	}
	return n, nil
}

// --- RevocationRegistry ---

func (r *RevocationRepo) Revoke(ctx context.Context, token *entity.RevokedToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.revoked[token.TokenID]; ok {
		return nil
	}
	cp := *token
	r.db.revoked[token.TokenID] = &cp
	return nil
}

// IsRevoked ignores entries whose credential has already expired.
func (r *RevocationRepo) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	entry, ok := r.db.revoked[tokenID]
	return ok && entry.IsActive(r.db.now()), nil
}

func (r *RevocationRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for id, entry := range r.db.revoked {
		if !entry.IsActive(now) {
			delete(r.db.revoked, id)
			n++
		}
	}
	return n, nil
}

// --- PasswordResetRepository ---

// Save replaces any outstanding token for the same email.
func (r *PasswordResetRepo) Save(ctx context.Context, token *entity.PasswordResetToken) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	for raw, existing := range r.db.resetTokens {
		if strings.EqualFold(existing.Email, token.Email) {
			delete(r.db.resetTokens, raw)
		}
	}
	cp := *token
	r.db.resetTokens[token.Token] = &cp
	return nil
}

func (r *PasswordResetRepo) Consume(ctx context.Context, token string) (*entity.PasswordResetToken, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	rt, ok := r.db.resetTokens[token]
	if !ok {
		return nil, outbound.ErrResetTokenNotFound
	}
	delete(r.db.resetTokens, token)
	return rt, nil
}

func (r *PasswordResetRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	var n int64
	for raw, rt := range r.db.resetTokens {
		if rt.IsExpired(now) {
			delete(r.db.resetTokens, raw)
			n++
		}
	}
	return n, nil
}
