package download

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

// LocalSource serves one file from a directory on disk.
type LocalSource struct {
	root *os.Root
	name string
}

// NewLocalSource binds the source to dir/name. name must be a plain file name.
func NewLocalSource(dir, name string) (*LocalSource, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, fmt.Errorf("download: invalid file name %q", name)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("download: open dir: %w", err)
	}
	return &LocalSource{root: root, name: name}, nil
}

func (s *LocalSource) Open(_ context.Context) (*File, error) {
	f, err := s.root.Open(s.name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("download: open: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("download: stat: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, ErrNotFound
	}
	return &File{
		Name:        s.name,
		ContentType: contentType(s.name),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		Content:     f,
	}, nil
}

func (s *LocalSource) Close() error { return s.root.Close() }

func contentType(name string) string {
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
