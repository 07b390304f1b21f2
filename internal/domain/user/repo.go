package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user matches the given email.
var ErrNotFound = errors.New("user not found")

// Repository persists the clinician registry. Register is an upsert keyed
// on email.
type Repository interface {
	Register(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context) ([]*User, error)
}
