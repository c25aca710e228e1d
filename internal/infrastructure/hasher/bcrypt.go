// Package hasher implements the password hashing capability consumed by
// the user store's mutation and verification paths.
package hasher

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyPlaintext is returned by Hash when given an empty password.
var ErrEmptyPlaintext = errors.New("hasher: plaintext must not be empty")

// Hasher is the capability the user store requires of its hashing
// primitive: verify a plaintext against a stored hash, and produce a new
// hash for a plaintext.
type Hasher interface {
	Verify(plaintext, hash string) bool
	Hash(plaintext string) (string, error)
}

// BcryptHasher implements Hasher using bcrypt.
type BcryptHasher struct {
	cost int
}

// New returns a BcryptHasher with the given cost factor. A cost outside
// bcrypt's [MinCost, MaxCost] range is clamped to DefaultCost.
func New(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Verify reports whether plaintext matches the given bcrypt hash. Any
// comparison error (malformed hash, mismatch) is treated as a failed
// verification rather than propagated.
func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	return err == nil
}

// Hash produces a new bcrypt hash for plaintext.
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hasher: generate: %w", err)
	}
	return string(out), nil
}
