package testutil

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"google.golang.org/grpc/metadata"

	"authPortal/internal/db"
	"authPortal/internal/hasher"
)

// FastHashIterations keeps PBKDF2 cheap in tests.
const FastHashIterations = 1000

// OpenInMemoryDB opens an in-memory SQLite database and applies migrations.
// The database is closed via t.Cleanup. Use a distinct name per test: databases
// with the same name share state while any connection is open.
func OpenInMemoryDB(t *testing.T, name string) *sql.DB {
	t.Helper()
	d, err := db.Open("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// NewHasher returns a hasher with a low iteration count.
func NewHasher() *hasher.Hasher {
	return hasher.New(FastHashIterations, hasher.DefaultSaltLength)
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// CtxWithBearer returns a context containing gRPC metadata Authorization header with the given token.
func CtxWithBearer(ctx context.Context, token string) context.Context {
	md := metadata.Pairs("authorization", "Bearer "+token)
	return metadata.NewIncomingContext(ctx, md)
}
