// Package identity provides password hashing and password policy checks.
package identity

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidPassword is returned when a password doesn't match its hash.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrPasswordTooShort is returned when a password fails the length policy.
	ErrPasswordTooShort = errors.New("password too short")
)

// UserAuth handles password hashing and verification.
type UserAuth struct {
	cost int // bcrypt cost factor
}

// NewUserAuth creates a new UserAuth with the given bcrypt cost.
// Cost should be at least 10 for production.
func NewUserAuth(cost int) *UserAuth {
	if cost < bcrypt.MinCost {
		cost = bcrypt.DefaultCost
	}
	return &UserAuth{cost: cost}
}

// HashPassword creates a bcrypt hash of the password.
func (a *UserAuth) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword checks if the password matches the hash.
// Returns ErrInvalidPassword if the password doesn't match.
func (a *UserAuth) VerifyPassword(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		return ErrInvalidPassword
	}
	return nil
}

// PasswordPolicy validates candidate passwords before hashing.
type PasswordPolicy struct {
	MinLength int
}

// DefaultPasswordPolicy returns the policy applied when none is configured.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8}
}

// Check returns ErrPasswordTooShort if the password fails the policy.
// Length is counted in runes so multibyte characters count once.
func (p PasswordPolicy) Check(password string) error {
	min := p.MinLength
	if min <= 0 {
		min = 8
	}
	if len([]rune(password)) < min {
		return ErrPasswordTooShort
	}
	return nil
}
