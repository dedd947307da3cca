package service

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Passcode is the process-lifetime admin secret. It is generated once at
// startup, shown to the operator, and only the bcrypt hash is kept in
// memory. It is read-only after creation, so concurrent checks need no
// locking.
type Passcode struct {
	hash []byte
}

// GeneratePasscode creates a random passcode and returns the plaintext
// (displayed once to the operator) together with its check handle.
func GeneratePasscode() (string, *Passcode, error) {
	raw := make([]byte, 10)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generate passcode: %w", err)
	}
	plain := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)[:12]

	passcode, err := NewPasscode(plain)
	if err != nil {
		return "", nil, err
	}
	return plain, passcode, nil
}

// NewPasscode wraps a fixed plaintext passcode. Used when the operator pins
// the passcode through configuration.
func NewPasscode(plain string) (*Passcode, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash passcode: %w", err)
	}
	return &Passcode{hash: hash}, nil
}

// Check reports whether the candidate matches the passcode.
func (p *Passcode) Check(candidate string) bool {
	return bcrypt.CompareHashAndPassword(p.hash, []byte(candidate)) == nil
}
