package onboarding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ezeehealth/clinicportal-go/internal/appctx"
	"github.com/ezeehealth/clinicportal-go/internal/identity"
	"github.com/ezeehealth/clinicportal-go/internal/otp"
	"github.com/ezeehealth/clinicportal-go/internal/store"
)

// Engine drives the activation state machine for both staff and patients.
//
// Verify and SetPassword are repeatable; VerifyOTP is the only step that
// consumes the invitation, and does so through a conditional update so
// concurrent activations serialize to exactly one winner.
type Engine struct {
	invitations InvitationRepo
	accounts    AccountRepo
	auth        *identity.UserAuth
	policy      identity.PasswordPolicy
	challenges  *otp.Challenges
}

// NewEngine wires the activation flow engine.
func NewEngine(invitations InvitationRepo, accounts AccountRepo, auth *identity.UserAuth, policy identity.PasswordPolicy, challenges *otp.Challenges) *Engine {
	return &Engine{
		invitations: invitations,
		accounts:    accounts,
		auth:        auth,
		policy:      policy,
		challenges:  challenges,
	}
}

// DisplayInfo is the preview returned by Verify. The mobile is masked;
// nothing here grants access.
type DisplayInfo struct {
	Kind       Kind
	Name       string
	ClinicName string
	Role       string
	Email      string
	Mobile     string
}

// Verify checks an invitation code and returns display data.
// Read-only and idempotent: verifying any number of times changes nothing.
func (e *Engine) Verify(ctx context.Context, kind Kind, code string) (*DisplayInfo, error) {
	_, acct, err := e.resolve(ctx, kind, code)
	if err != nil {
		return nil, err
	}

	return &DisplayInfo{
		Kind:       kind,
		Name:       acct.FullName(),
		ClinicName: acct.ClinicName,
		Role:       acct.Role,
		Email:      acct.Email,
		Mobile:     MaskMobile(acct.Mobile),
	}, nil
}

// SetPassword validates and stores the password, then issues a fresh OTP
// challenge for the account's mobile. Re-invocable until activation: each
// call overwrites the hash and replaces the pending challenge. Returns the
// identifier the OTP step expects.
func (e *Engine) SetPassword(ctx context.Context, kind Kind, code, password string) (string, error) {
	_, acct, err := e.resolve(ctx, kind, code)
	if err != nil {
		return "", err
	}

	if err := e.policy.Check(password); err != nil {
		return "", fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}

	hash, err := e.auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	if err := e.accounts.SetPasswordHash(ctx, acct.ID, hash); err != nil {
		return "", fmt.Errorf("store password: %w", err)
	}

	// Dispatch failure surfaces as otp.ErrDeliveryFailed; the password
	// hash stays so the caller can simply retry this step.
	if err := e.challenges.Issue(ctx, acct.Mobile); err != nil {
		return "", err
	}

	appctx.GetLogger(ctx).Info("otp challenge issued",
		"kind", kind, "account_id", acct.ID, "mobile", MaskMobile(acct.Mobile))

	return acct.Mobile, nil
}

// VerifyOTP checks the submitted code and, on success, activates the
// account and consumes the invitation. Exactly one concurrent caller
// succeeds; the rest observe ErrAlreadyActivated (or a dead challenge).
func (e *Engine) VerifyOTP(ctx context.Context, identifier, code string) error {
	acct, err := e.accounts.GetByMobile(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredential
		}
		return fmt.Errorf("load account: %w", err)
	}

	if acct.Active {
		return ErrAlreadyActivated
	}

	if err := e.challenges.Check(ctx, identifier, code); err != nil {
		return err
	}

	inv, err := e.invitations.GetPendingByAccount(ctx, acct.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAlreadyActivated
		}
		return fmt.Errorf("load invitation: %w", err)
	}

	// The conditional consume is the activation race's single winner gate.
	if err := e.invitations.Consume(ctx, inv.Code); err != nil {
		if errors.Is(err, ErrInviteConsumed) {
			return ErrAlreadyActivated
		}
		return fmt.Errorf("consume invitation: %w", err)
	}

	if err := e.accounts.Activate(ctx, acct.ID); err != nil {
		return fmt.Errorf("activate account: %w", err)
	}

	appctx.GetLogger(ctx).Info("account activated",
		"kind", acct.Kind, "account_id", acct.ID)

	return nil
}

// resolve loads and gates an invitation for a step.
// Consumed invitations and active accounts are terminal; expiry is
// checked only for otherwise-live invitations.
func (e *Engine) resolve(ctx context.Context, kind Kind, code string) (*Invitation, *Account, error) {
	inv, err := e.invitations.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredential
		}
		return nil, nil, fmt.Errorf("load invitation: %w", err)
	}

	if inv.Kind != kind {
		return nil, nil, ErrInvalidCredential
	}

	acct, err := e.accounts.Get(ctx, inv.AccountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil, ErrInvalidCredential
		}
		return nil, nil, fmt.Errorf("load account: %w", err)
	}

	if inv.Consumed || acct.Active {
		return nil, nil, ErrAlreadyActivated
	}

	if inv.Expired(time.Now()) {
		return nil, nil, ErrExpiredCredential
	}

	return inv, acct, nil
}
