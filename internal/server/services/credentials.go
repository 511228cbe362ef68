package services

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	CredentialModePlain  = "plain"
	CredentialModeBcrypt = "bcrypt"
)

// Credentials decides how a secret is stored and how a login attempt is
// compared against it. The login state machine never looks at secrets itself.
type Credentials interface {
	Seal(secret string) (string, error)
	Matches(stored, secret string) bool
}

// PlainCredentials stores secrets as given and compares them exactly.
type PlainCredentials struct{}

func (PlainCredentials) Seal(secret string) (string, error) {
	return secret, nil
}

func (PlainCredentials) Matches(stored, secret string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(secret)) == 1
}

// BcryptCredentials stores bcrypt hashes.
type BcryptCredentials struct {
	Cost int
}

func (c BcryptCredentials) Seal(secret string) (string, error) {
	cost := c.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(hash), nil
}

func (BcryptCredentials) Matches(stored, secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret)) == nil
}

// NewCredentials returns the policy for a CREDENTIAL_MODE value.
func NewCredentials(mode string) (Credentials, error) {
	switch mode {
	case "", CredentialModePlain:
		return PlainCredentials{}, nil
	case CredentialModeBcrypt:
		return BcryptCredentials{}, nil
	default:
		return nil, fmt.Errorf("unknown credential mode %q", mode)
	}
}
