// Package otp manages one-time password challenges for account activation.
// Challenges live in the cache subsystem so they expire automatically and
// are shared across replicas.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ezeehealth/clinicportal-go/internal/appctx"
	"github.com/ezeehealth/clinicportal-go/internal/cache"
)

var (
	// ErrMismatch is returned when the submitted code is wrong.
	ErrMismatch = errors.New("otp code mismatch")

	// ErrExpired is returned when no live challenge exists for the identifier.
	ErrExpired = errors.New("otp challenge expired or missing")

	// ErrLocked is returned when the attempt limit is exhausted.
	// The challenge is destroyed; a new one must be issued.
	ErrLocked = errors.New("otp challenge locked after too many attempts")

	// ErrDeliveryFailed is returned when the code could not be dispatched.
	ErrDeliveryFailed = errors.New("otp delivery failed")
)

// keyPrefix namespaces challenge keys in the shared cache.
const keyPrefix = "otp:"

// codeDigits is the length of generated codes.
const codeDigits = 6

// Challenge is the cached state of one pending verification.
// The code never leaves the server.
type Challenge struct {
	Code        string    `json:"code"`
	ExpiresAt   time.Time `json:"expires_at"`
	Attempts    int       `json:"attempts"`
	MaxAttempts int       `json:"max_attempts"`
}

// Challenges issues and checks OTP challenges, one per identifier.
// Issuing a new challenge replaces any prior one for the same identifier.
type Challenges struct {
	cache       cache.Cache
	sender      Sender
	ttl         time.Duration
	maxAttempts int
}

// NewChallenges creates a challenge manager.
// ttl and maxAttempts fall back to 10 minutes and 5 when zero.
func NewChallenges(c cache.Cache, sender Sender, ttl time.Duration, maxAttempts int) *Challenges {
	if ttl <= 0 {
		ttl = cache.TTLOtpChallenge
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Challenges{
		cache:       c,
		sender:      sender,
		ttl:         ttl,
		maxAttempts: maxAttempts,
	}
}

// Issue generates a fresh challenge for the identifier and dispatches the
// code through the sender. Any prior challenge for the identifier is
// replaced. If dispatch fails the stored challenge is removed so the
// caller can retry the whole step.
func (m *Challenges) Issue(ctx context.Context, identifier string) error {
	code, err := generateCode()
	if err != nil {
		return fmt.Errorf("generate otp code: %w", err)
	}

	ch := Challenge{
		Code:        code,
		ExpiresAt:   time.Now().Add(m.ttl),
		Attempts:    0,
		MaxAttempts: m.maxAttempts,
	}

	data, err := json.Marshal(ch)
	if err != nil {
		return fmt.Errorf("marshal otp challenge: %w", err)
	}

	key := keyPrefix + identifier
	if err := m.cache.Set(ctx, key, data, m.ttl); err != nil {
		return fmt.Errorf("store otp challenge: %w", err)
	}

	if err := m.sender.Send(ctx, identifier, code); err != nil {
		// Roll back so a failed dispatch never leaves a live challenge
		// the holder was never told about.
		if delErr := m.cache.Delete(ctx, key); delErr != nil {
			appctx.GetLogger(ctx).Warn("failed to remove undelivered otp challenge",
				"identifier", identifier, "error", delErr)
		}
		return fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	return nil
}

// Check verifies a submitted code against the live challenge.
// A wrong code burns one attempt; at the limit the challenge is destroyed
// and ErrLocked returned. A correct code consumes the challenge.
func (m *Challenges) Check(ctx context.Context, identifier, code string) error {
	key := keyPrefix + identifier

	data, err := m.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) || errors.Is(err, cache.ErrExpired) {
			return ErrExpired
		}
		return fmt.Errorf("load otp challenge: %w", err)
	}

	var ch Challenge
	if err := json.Unmarshal(data, &ch); err != nil {
		return fmt.Errorf("decode otp challenge: %w", err)
	}

	if time.Now().After(ch.ExpiresAt) {
		m.cache.Delete(ctx, key)
		return ErrExpired
	}

	if code != ch.Code {
		ch.Attempts++
		if ch.Attempts >= ch.MaxAttempts {
			m.cache.Delete(ctx, key)
			return ErrLocked
		}

		updated, err := json.Marshal(ch)
		if err != nil {
			return fmt.Errorf("marshal otp challenge: %w", err)
		}
		remaining := time.Until(ch.ExpiresAt)
		if err := m.cache.Set(ctx, key, updated, remaining); err != nil {
			return fmt.Errorf("store otp challenge: %w", err)
		}
		return ErrMismatch
	}

	if err := m.cache.Delete(ctx, key); err != nil {
		return fmt.Errorf("consume otp challenge: %w", err)
	}
	return nil
}

// generateCode returns a random numeric code, zero-padded to codeDigits.
func generateCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < codeDigits; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
