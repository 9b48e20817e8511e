package models

// User represents a registered account.
// It maps to the `users` table in SQLite. PasswordHash is always the output of
// the password hasher and is never rendered.
type User struct {
	ID           int64  `db:"id" json:"id"`
	Email        string `db:"email" json:"email"`
	PasswordHash string `db:"password_hash" json:"-"`
	Name         string `db:"name" json:"name"`
}
