// Package download provides the single protected file served by /download.
// Sources are bound to one fixed name at construction; nothing here accepts a
// caller-supplied path.
package download

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when the configured file does not exist.
var ErrNotFound = errors.New("download: file not found")

// File is an open download. Content may also implement io.ReadSeeker, in
// which case range requests are honoured.
type File struct {
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time
	Content     io.ReadCloser
}

// Source opens the configured file.
type Source interface {
	Open(ctx context.Context) (*File, error)
}
