package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesSchemaIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.db")

	d, err := Open(path)
	require.NoError(t, err)
	_, err = d.Exec(`INSERT INTO users (email, password_hash, name) VALUES ('a@example.com', 'h', 'A')`)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	// Reopening must keep existing rows and not re-run the migration.
	d, err = Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	require.Equal(t, 1, n)

	v, err := Version(d)
	require.NoError(t, err)
	require.EqualValues(t, 1, v)
}

func TestUsersEmailIsUnique(t *testing.T) {
	d, err := Open("file:dbunique?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(`INSERT INTO users (email, password_hash) VALUES ('dup@example.com', 'h')`)
	require.NoError(t, err)
	_, err = d.Exec(`INSERT INTO users (email, password_hash) VALUES ('dup@example.com', 'h2')`)
	require.Error(t, err)
}

func TestRollbackLast(t *testing.T) {
	d, err := Open("file:dbrollback?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	require.NoError(t, RollbackLast(d))

	v, err := Version(d)
	require.NoError(t, err)
	require.EqualValues(t, 0, v)

	_, err = d.Exec(`SELECT 1 FROM users`)
	require.Error(t, err, "users table should be dropped")
}

func TestRollbackLast_NilDB(t *testing.T) {
	require.Error(t, RollbackLast(nil))
}

func TestOpenSessions_SeparateSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sessions.db")

	d, err := OpenSessions(path)
	require.NoError(t, err)
	_, err = d.Exec(`INSERT INTO sessions (id, user_id, expires_at) VALUES ('s1', 1, 0)`)
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = OpenSessions(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	var n int
	require.NoError(t, d.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n))
	require.Equal(t, 1, n)

	// Credentials never land in the session file.
	err = d.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n)
	require.Error(t, err)
}
