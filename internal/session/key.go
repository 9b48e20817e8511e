package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const keySize = 32

// SigningKey returns the key used to sign session tokens. An explicit secret
// wins; otherwise the key is read from keyFile, which is generated on first
// use and then reused so sessions outlive restarts.
func SigningKey(secret, keyFile string) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	if keyFile == "" {
		return nil, errors.New("session: neither secret nor key file configured")
	}
	return LoadOrCreateKey(keyFile)
}

var errEmptyKeyFile = errors.New("session: key file is empty")

// LoadOrCreateKey reads a hex-encoded key from path, creating it with fresh
// random bytes (mode 0600) when the file does not exist. The key is written to
// a temporary file and linked into place, so readers never see a partial key
// and concurrent creators all end up with the first one linked.
func LoadOrCreateKey(path string) ([]byte, error) {
	key, err := readKey(path)
	switch {
	case err == nil:
		return key, nil
	case errors.Is(err, errEmptyKeyFile):
		// Left behind by an interrupted create; replace it.
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("session: remove empty key file: %w", err)
		}
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}

	key = make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("session: generate key: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: create key dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-key-*")
	if err != nil {
		return nil, fmt.Errorf("session: create key file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("session: write key file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return nil, fmt.Errorf("session: sync key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("session: write key file: %w", err)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return readKey(path)
		}
		return nil, fmt.Errorf("session: install key file: %w", err)
	}
	return key, nil
}

func readKey(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read key file: %w", err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, errEmptyKeyFile
	}
	key, err := hex.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("session: decode key file %s: %w", path, err)
	}
	if len(key) < keySize {
		return nil, fmt.Errorf("session: key file %s holds %d bytes, want at least %d", path, len(key), keySize)
	}
	return key, nil
}
