package outbound

import (
	"context"
	"errors"

	"github.com/expensetrack/expensetrack/domain/entity"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
)

// UserRepository is the identity lookup the session core depends on.
type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*entity.User, error)
	// FindByIdentifier matches email, username or phone. When several
	// accounts match, the one with the lowest id wins.
	FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, user *entity.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
}
