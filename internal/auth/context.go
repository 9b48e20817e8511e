package auth

import (
	"context"
	"errors"

	"authPortal/models"
)

// ErrUnauthenticated is returned by RequireUser when no session resolved.
var ErrUnauthenticated = errors.New("unauthenticated")

// Resolver maps a session token to its user; (nil, nil) means anonymous.
// *session.Manager satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, token string) (*models.User, error)
}

type userKey struct{}

// WithUser stores the authenticated user in context.
func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// FromContext retrieves the authenticated user from context (if any).
func FromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey{}).(*models.User)
	return u, ok && u != nil
}

// RequireUser ensures a user is present in context.
func RequireUser(ctx context.Context) (*models.User, error) {
	u, ok := FromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return u, nil
}
