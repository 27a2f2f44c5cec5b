package repository

import (
	"context"
	"errors"

	"github.com/blanjamart/account-service/internal/domain/entity"
)

// ErrNotFound is returned by lookups addressed to a missing user id.
var ErrNotFound = errors.New("user not found")

// Duplicate sentinels surfaced when the schema's UNIQUE constraints reject
// a write that slipped past the service's fast-path checks.
var (
	ErrDuplicateEmail    = errors.New("duplicate email")
	ErrDuplicateUsername = errors.New("duplicate username")
)

// BalancePatch distinguishes "leave unchanged", "clear to no value" and
// "set to Value" for the nullable balance column.
type BalancePatch struct {
	Set   bool
	Valid bool // false clears the column to NULL
	Value int64
}

// ProfileChanges carries a field-wise partial update. Nil pointers mean
// "not provided" and leave the stored value untouched.
type ProfileChanges struct {
	Username   *string
	Fullname   *string
	Email      *string
	Phone      *string
	City       *string
	Address    *string
	PostCode   *string
	CreditCard *string
	Gender     *string
	Level      *string
	Balance    BalancePatch
}

// UserRepository is the durable store for user records. It is the sole
// owner of persisted state and the authoritative guard for the email and
// username uniqueness invariants (UNIQUE constraints in the schema).
//
// FindByEmail and FindByUsername return (nil, nil) when no row matches;
// GetByID returns ErrNotFound instead because callers address a concrete id.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListAll(ctx context.Context) ([]entity.User, error)
	SearchByUsername(ctx context.Context, fragment string, limit, offset int) ([]entity.User, error)
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	Insert(ctx context.Context, u *entity.User) error
	Update(ctx context.Context, id string, ch ProfileChanges) error
	UpdatePassword(ctx context.Context, email, hash string) error
	UpdatePhoto(ctx context.Context, id, url, handle string) error
	Delete(ctx context.Context, id string) error
}
