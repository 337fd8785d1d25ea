package utils

import (
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies passwords with bcrypt at a fixed cost.
type Hasher struct {
	Cost  int
	dummy *dummyHash
}

// dummyHash is compared against when an account does not exist so that an
// unknown e-mail costs about as much as a wrong password.  It is generated
// lazily at the hasher's cost.
type dummyHash struct {
	once sync.Once
	hash string
}

// NewHasher returns a Hasher, clamping cost to bcrypt's accepted range.
func NewHasher(cost int) Hasher {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return Hasher{Cost: cost, dummy: &dummyHash{}}
}

// Hash returns the bcrypt hash of plain.
func (h Hasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares a bcrypt hash and a plain password.  A malformed
// hash is a mismatch, never an error.
func (h Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// VerifyDummy burns one comparison for a missing account.
func (h Hasher) VerifyDummy(plain string) {
	if h.dummy == nil {
		return
	}
	h.dummy.once.Do(func() {
		h.dummy.hash, _ = h.Hash("smartplate-dummy-password")
	})
	_ = h.Verify(plain, h.dummy.hash)
}

// Password policy bounds, in characters.
const (
	PasswordMinLen = 8
	PasswordMaxLen = 64
)

// PasswordPolicyViolation describes why a password was rejected.  An empty
// string means the password is acceptable.
func PasswordPolicyViolation(p string) string {
	n := utf8.RuneCountInString(p)
	if n < PasswordMinLen || n > PasswordMaxLen {
		return "must be between 8 and 64 characters"
	}
	var digit, symbol bool
	for _, r := range p {
		switch {
		case r >= '0' && r <= '9':
			digit = true
		case isWordChar(r) || unicode.IsSpace(r):
		default:
			symbol = true
		}
	}
	if !digit {
		return "must contain at least one digit"
	}
	if !symbol {
		return "must contain at least one symbol"
	}
	return ""
}

func isWordChar(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
