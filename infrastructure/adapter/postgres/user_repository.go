package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/expensetrack/expensetrack/application/port/outbound"
	"github.com/expensetrack/expensetrack/domain/entity"
)

const uniqueViolation = "23505"

const userColumns = `id, name, email, username, phone, password, role, created_at, updated_at`

type UserRepositoryAdapter struct {
	db *sql.DB
}

func NewUserRepositoryAdapter(db *sql.DB) *UserRepositoryAdapter {
	return &UserRepositoryAdapter{
		db: db,
	}
}

var _ outbound.UserRepository = (*UserRepositoryAdapter)(nil)

func (r *UserRepositoryAdapter) FindByID(ctx context.Context, id int64) (*entity.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.findOne(ctx, "find user by ID", query, id)
}

// FindByIdentifier matches email (case-insensitive), username or phone.
func (r *UserRepositoryAdapter) FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	if identifier == "" {
		return nil, outbound.ErrUserNotFound
	}

	query := `
		SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) OR username = $1 OR phone = $1
		ORDER BY id
		LIMIT 1
	`
	return r.findOne(ctx, "find user by identifier", query, identifier)
}

func (r *UserRepositoryAdapter) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if email == "" {
		return nil, outbound.ErrUserNotFound
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	return r.findOne(ctx, "find user by email", query, email)
}

func (r *UserRepositoryAdapter) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return exists, nil
}

// Create inserts the user and sets user.ID. Unique violations on email,
// username or phone map to ErrUserAlreadyExists.
func (r *UserRepositoryAdapter) Create(ctx context.Context, user *entity.User) error {
	if user == nil {
		return fmt.Errorf("user cannot be nil")
	}
	if user.Email == "" || user.Password == "" {
		return fmt.Errorf("user email and password are required")
	}

	query := `
		INSERT INTO users (name, email, username, phone, password, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`

	err := r.db.QueryRowContext(ctx, query,
		user.Name,
		user.Email,
		nullString(user.Username),
		nullString(user.Phone),
		user.Password,
		string(user.Role),
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return outbound.ErrUserAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

func (r *UserRepositoryAdapter) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.db.ExecContext(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return outbound.ErrUserNotFound
	}
	return nil
}

func (r *UserRepositoryAdapter) findOne(ctx context.Context, op, query string, args ...interface{}) (*entity.User, error) {
	var (
		user     entity.User
		username sql.NullString
		phone    sql.NullString
		role     string
	)
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&username,
		&phone,
		&user.Password,
		&role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, outbound.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	user.Username = username.String
	user.Phone = phone.String
	user.Role = entity.Role(role)
	return &user, nil
}
