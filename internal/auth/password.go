// Package auth handles panel credentials and sessions.
package auth

import (
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/keithlinneman/quarry/internal/xerrors"
)

const minPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail returns the canonical lowercase form and validates the
// shape.
func NormalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", xerrors.New("email is required")
	}
	if !emailPattern.MatchString(email) {
		return "", xerrors.Newf("invalid email %q", email)
	}
	return email, nil
}

// ValidatePassword checks minimal password requirements.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return xerrors.Newf("password must be at least %d characters", minPasswordLength)
	}
	return nil
}

// HashPassword hashes one plaintext password for persistent storage.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", xerrors.Wrap(err, "hashing password")
	}
	return string(hashed), nil
}

// VerifyPassword verifies a plaintext candidate against a bcrypt hash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}

// dummyHash keeps login timing constant when the email does not match
// any account.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("quarry-no-such-user"), bcrypt.DefaultCost)

// FakeVerify burns the same bcrypt work as a real verification.
func FakeVerify(candidate string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(candidate))
}
