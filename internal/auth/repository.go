package auth

import (
	"context"
	"errors"
)

// ErrEmailTaken is returned when an upsert would give a second user the same email.
var ErrEmailTaken = errors.New("email already belongs to another user")

// Repository defines the user store.
type Repository interface {
	// GetUser returns the user with the given id, or nil when none exists.
	GetUser(ctx context.Context, id string) (*User, error)
	// UpsertUser inserts user or replaces the name, email and profile picture
	// of the existing record with the same id. CreatedAt is ignored.
	UpsertUser(ctx context.Context, user User) error
}
