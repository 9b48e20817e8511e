package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

// DefaultPath is used when no database path is configured.
const DefaultPath = "users.db"

// DefaultSessionsPath is the default file for the session backing store. It is
// a separate database from the credential store.
const DefaultSessionsPath = "sessions.db"

const migrateTimeout = 30 * time.Second

const (
	usersMigrations    = "migrations"
	sessionsMigrations = "sessionmigrations"
)

//go:embed migrations/*.sql sessionmigrations/*.sql
var migrationsFS embed.FS

// Open opens (or creates) a local SQLite database file and applies pending migrations.
// Migrations are goose-formatted .sql files embedded from internal/db/migrations:
//
//	00001_name.sql with "-- +goose Up" / "-- +goose Down" sections
//
// Only new migrations are applied, so calling Open on an existing file is idempotent.
// Use RollbackLast to revert the last applied migration.
func Open(path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultPath
	}
	return open(path, usersMigrations)
}

// OpenSessions opens (or creates) the session database and applies the
// migrations from internal/db/sessionmigrations.
func OpenSessions(path string) (*sql.DB, error) {
	if path == "" {
		path = DefaultSessionsPath
	}
	return open(path, sessionsMigrations)
}

func open(path, dir string) (*sql.DB, error) {
	d, err := sql.Open("sqlite3", withBusyTimeout(path))
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = d.Exec(`PRAGMA journal_mode=WAL`)
	if err := applyMigrations(d, dir); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// RollbackLast rolls back the most recently applied credential store migration.
// It is a no-op when nothing has been applied.
func RollbackLast(d *sql.DB) error {
	if d == nil {
		return errors.New("nil db")
	}
	p, err := newProvider(d, usersMigrations)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if _, err := p.Down(ctx); err != nil {
		if errors.Is(err, goose.ErrNoNextVersion) {
			return nil
		}
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// Version reports the current credential store schema version.
func Version(d *sql.DB) (int64, error) {
	p, err := newProvider(d, usersMigrations)
	if err != nil {
		return 0, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	return p.GetDBVersion(ctx)
}

// withBusyTimeout applies busy_timeout to every pooled connection via the DSN.
func withBusyTimeout(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_busy_timeout=5000"
}

func newProvider(d *sql.DB, dir string) (*goose.Provider, error) {
	sub, err := fs.Sub(migrationsFS, dir)
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(goose.DialectSQLite3, d, sub)
}

func applyMigrations(d *sql.DB, dir string) error {
	p, err := newProvider(d, dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()
	if _, err := p.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
