package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// OPERATOR PASSWORD
//
// There is exactly one secret: AUTH_PASSWORD. Gate hashes it once when the
// server starts and keeps only the hash, so every later login is a single
// bcrypt comparison against memory. Nothing is ever written to the store.

// DefaultPasswordCost is the bcrypt work factor used by the server.
const DefaultPasswordCost = 12

var errWrongPassword = errors.New("auth: password does not match")

// PasswordService hashes and checks the operator password.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService with the given bcrypt cost.
// A cost outside bcrypt's range falls back to DefaultPasswordCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext. bcrypt refuses input longer
// than 72 bytes and the error is passed through.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns errWrongPassword on a mismatch and a wrapped error when
// the hash itself is unusable.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return errWrongPassword
	default:
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
}
