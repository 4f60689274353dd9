// Package credential stores and verifies passwords as one-way digests.
//
// A user's initial digest is the digest of their own identity number (the sentinel):
// Hasher.Matches(identity, digest) tells whether the password was never changed.
package credential

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/AntoVGreco/app-instituto-MCV/core"
)

type Hasher interface {
	// Hash returns the digest of `plain`.
	Hash(plain string) (string, error)
	// Matches reports whether `plain` hashes to `digest`.
	Matches(plain, digest string) bool
}

// New returns the Hasher configured by conf.Hasher.
func New(conf *core.Config) (Hasher, error) {
	switch conf.Hasher {
	case core.HasherSHA256, "":
		return SHA256{}, nil
	case core.HasherBcrypt:
		return Bcrypt{Cost: conf.BcryptCost}, nil
	default:
		return nil, errors.Errorf("credential: unknown hasher %q", conf.Hasher)
	}
}

// SHA256 is the deterministic hex SHA-256 digest (64 lowercase hex chars).
type SHA256 struct{}

var _ Hasher = SHA256{} // interface compliance check

func (SHA256) Hash(plain string) (string, error) {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:]), nil
}

func (h SHA256) Matches(plain, digest string) bool {
	hash, _ := h.Hash(plain)
	return subtle.ConstantTimeCompare([]byte(hash), []byte(digest)) == 1
}

// Bcrypt salts every digest: two digests of the same input differ, Matches still holds.
type Bcrypt struct {
	Cost int
}

var _ Hasher = Bcrypt{} // interface compliance check

func (h Bcrypt) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}
	return string(hash), nil
}

func (Bcrypt) Matches(plain, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
