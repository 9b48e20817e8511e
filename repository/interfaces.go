package repository

import (
	"context"
	"errors"

	"authPortal/models"
)

// ErrDuplicateEmail is returned by Create when the email is already registered.
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepositoryI defines the credential store operations on User entities.
// Lookups return (nil, nil) when no row matches.
type UserRepositoryI interface {
	Create(ctx context.Context, email, passwordHash, name string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

var _ UserRepositoryI = (*UserRepository)(nil)
