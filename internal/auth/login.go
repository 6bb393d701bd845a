package auth

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sakif/creator-outliers/internal/apperror"
)

// OperatorSubject is the JWT subject issued to whoever knows the password.
const OperatorSubject = "operator"

// Gate checks the operator password and issues tokens.
type Gate struct {
	hash      string
	passwords *PasswordService
	tokens    *TokenService
	logger    *slog.Logger
}

// NewGate hashes password once and keeps only the hash.
func NewGate(password string, passwords *PasswordService, tokens *TokenService, logger *slog.Logger) (*Gate, error) {
	if password == "" {
		return nil, errors.New("auth: operator password must not be empty")
	}
	hash, err := passwords.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("auth: hashing operator password: %w", err)
	}
	return &Gate{hash: hash, passwords: passwords, tokens: tokens, logger: logger}, nil
}

// Tokens returns the TokenService used to sign sessions, for RequireAuth.
func (g *Gate) Tokens() *TokenService {
	return g.tokens
}

// Login returns a signed token when password matches. A wrong or empty
// password is an AuthRequired error; the reason is logged, not returned.
func (g *Gate) Login(password string) (string, error) {
	if password == "" {
		return "", apperror.AuthRequired("password is required", nil)
	}
	if err := g.passwords.Verify(g.hash, password); err != nil {
		g.logger.Warn("login rejected", slog.String("error", err.Error()))
		return "", apperror.AuthRequired("invalid password", nil)
	}

	token, err := g.tokens.Generate(OperatorSubject)
	if err != nil {
		return "", err
	}
	g.logger.Info("operator logged in")
	return token, nil
}
