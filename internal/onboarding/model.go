// Package onboarding implements the invitation-driven account activation
// flow: code verification, password creation, OTP confirmation.
package onboarding

import (
	"errors"
	"strings"
	"time"
)

// Kind distinguishes staff and patient onboarding.
// Both kinds run the same state machine; only display fields differ.
type Kind string

const (
	KindStaff   Kind = "staff"
	KindPatient Kind = "patient"
)

var (
	// ErrInvalidCredential is returned for unknown codes and kind mismatches.
	ErrInvalidCredential = errors.New("invitation code invalid")

	// ErrExpiredCredential is returned for codes past their expiry.
	ErrExpiredCredential = errors.New("invitation code expired")

	// ErrAlreadyActivated is returned once the account is active or the
	// invitation consumed. The flow is terminal after activation.
	ErrAlreadyActivated = errors.New("account already activated")

	// ErrWeakPassword is returned when the password fails the policy.
	ErrWeakPassword = errors.New("password does not meet policy")

	// ErrInviteConsumed is returned by Consume when the invitation was
	// already consumed. Exactly one concurrent activation wins.
	ErrInviteConsumed = errors.New("invitation already consumed")
)

// Invitation is a single-use onboarding credential.
// It is consumed only at successful OTP verification, never deleted.
type Invitation struct {
	ID         string     `gorm:"primaryKey" json:"id"`
	Code       string     `gorm:"uniqueIndex" json:"code"`
	Kind       Kind       `gorm:"index" json:"kind"`
	AccountID  string     `gorm:"index" json:"account_id"`
	SentAt     time.Time  `json:"sent_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	Consumed   bool       `json:"consumed"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Expired reports whether the invitation is past its expiry.
func (i *Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Account is a staff or patient record being onboarded.
// Activation progress is derived from the fields, not stored as a state:
// no password hash means pending verification, a hash without Active
// means the OTP step is outstanding, Active is terminal.
type Account struct {
	ID           string     `gorm:"primaryKey" json:"id"`
	Kind         Kind       `gorm:"index" json:"kind"`
	Mobile       string     `gorm:"uniqueIndex" json:"mobile"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	ClinicName   string     `json:"clinic_name"`
	Role         string     `json:"role"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	ActivatedAt  *time.Time `json:"activated_at,omitempty"`
}

// FullName joins the name parts for display.
func (a *Account) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// MaskMobile hides all but the last four digits of a mobile number.
func MaskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return strings.Repeat("*", len(mobile))
	}
	return strings.Repeat("*", len(mobile)-4) + mobile[len(mobile)-4:]
}
