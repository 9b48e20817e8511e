// Package session issues, resolves and revokes login sessions.
//
// A session token is an HS256 JWT whose jti names a server-side store entry.
// The signature keeps tokens unforgeable; the store entry makes logout final.
package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"authPortal/models"
)

const (
	DefaultTTL = 24 * time.Hour
	issuer     = "authportal"
)

// UserLookup rehydrates a session's user id. repository.UserRepository satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type Manager struct {
	users UserLookup
	store Store
	key   []byte
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(users UserLookup, store Store, key []byte, ttl time.Duration) (*Manager, error) {
	if users == nil || store == nil {
		return nil, errors.New("session: users and store are required")
	}
	if len(key) == 0 {
		return nil, errors.New("session: signing key is empty")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{users: users, store: store, key: key, ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of newly issued sessions.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Login starts a session for u and returns its token.
func (m *Manager) Login(ctx context.Context, u *models.User) (string, error) {
	if u == nil || u.ID == 0 {
		return "", errors.New("session: login requires a persisted user")
	}
	now := m.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   strconv.FormatInt(u.ID, 10),
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	if err := m.store.Save(ctx, claims.ID, u.ID); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve maps a token to its user. It returns (nil, nil) for anonymous
// callers: malformed, forged, expired or revoked tokens, and sessions whose
// user no longer exists. Errors are reserved for storage failures.
func (m *Manager) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	claims, err := m.parse(token,
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, nil
	}
	sub, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return nil, nil
	}

	uid, ok, err := m.store.Lookup(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !ok || uid != sub {
		return nil, nil
	}

	u, err := m.users.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("load session user: %w", err)
	}
	return u, nil
}

// Logout revokes the session behind token. Tokens that do not carry a valid
// signature are ignored; expired ones are still revoked.
func (m *Manager) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	claims, err := m.parse(token, jwt.WithoutClaimsValidation())
	if err != nil || claims.ID == "" {
		return nil
	}
	return m.store.Delete(ctx, claims.ID)
}

func (m *Manager) parse(token string, opts ...jwt.ParserOption) (*jwt.RegisteredClaims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}
