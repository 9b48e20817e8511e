// Package hasher produces and checks salted PBKDF2-HMAC-SHA256 password hashes.
//
// Hashes are self-describing strings of the form
//
//	pbkdf2:sha256:<iterations>$<salt>$<hex key>
//
// so verification needs nothing besides the stored string.
package hasher

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	DefaultIterations = 600000
	DefaultSaltLength = 8
	MinSaltLength     = 8

	// legacyIterations applies to hashes whose method omits the round count.
	legacyIterations = 260000
	keyLength        = sha256.Size
	method           = "pbkdf2"
	digest           = "sha256"
	saltChars        = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var ErrInvalidHash = errors.New("hasher: invalid hash format")

// Hasher holds the cost parameters for new hashes. Verify honours whatever
// parameters are embedded in the stored hash.
type Hasher struct {
	iterations int
	saltLength int
}

// New returns a Hasher. Non-positive iterations fall back to DefaultIterations
// and salt lengths below MinSaltLength are raised to it.
func New(iterations, saltLength int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	if saltLength < MinSaltLength {
		saltLength = MinSaltLength
	}
	return &Hasher{iterations: iterations, saltLength: saltLength}
}

// Hash derives a storable hash for plaintext with a fresh random salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	salt, err := genSalt(h.saltLength)
	if err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := derive(plaintext, salt, h.iterations)
	return fmt.Sprintf("%s:%s:%d$%s$%s", method, digest, h.iterations, salt, hex.EncodeToString(key)), nil
}

// Verify reports whether plaintext matches encoded. Malformed input yields false.
func (h *Hasher) Verify(plaintext, encoded string) bool {
	iterations, salt, want, err := decode(encoded)
	if err != nil {
		return false
	}
	got := derive(plaintext, salt, iterations)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func derive(plaintext, salt string, iterations int) []byte {
	return pbkdf2.Key([]byte(plaintext), []byte(salt), iterations, keyLength, sha256.New)
}

func decode(encoded string) (iterations int, salt string, key []byte, err error) {
	parts := strings.Split(encoded, "$")
	// Expected: ["pbkdf2:sha256[:iterations]", "<salt>", "<hex key>"]
	if len(parts) != 3 || parts[1] == "" {
		return 0, "", nil, ErrInvalidHash
	}

	params := strings.Split(parts[0], ":")
	if len(params) < 2 || len(params) > 3 || params[0] != method || params[1] != digest {
		return 0, "", nil, ErrInvalidHash
	}
	iterations = legacyIterations
	if len(params) == 3 {
		iterations, err = strconv.Atoi(params[2])
		if err != nil || iterations <= 0 {
			return 0, "", nil, ErrInvalidHash
		}
	}

	key, err = hex.DecodeString(parts[2])
	if err != nil || len(key) != keyLength {
		return 0, "", nil, ErrInvalidHash
	}
	return iterations, parts[1], key, nil
}

func genSalt(n int) (string, error) {
	max := big.NewInt(int64(len(saltChars)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(saltChars[idx.Int64()])
	}
	return b.String(), nil
}
