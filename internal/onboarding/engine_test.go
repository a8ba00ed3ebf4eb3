package onboarding_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ezeehealth/clinicportal-go/internal/cache/memory"
	"github.com/ezeehealth/clinicportal-go/internal/identity"
	"github.com/ezeehealth/clinicportal-go/internal/onboarding"
	"github.com/ezeehealth/clinicportal-go/internal/otp"
)

// stubSender records dispatched codes and can be told to fail.
type stubSender struct {
	mu    sync.Mutex
	codes []string
	fail  error
}

func (s *stubSender) Send(ctx context.Context, mobile, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.codes = append(s.codes, code)
	return nil
}

func (s *stubSender) lastCode(t *testing.T) string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		t.Fatal("no code dispatched")
	}
	return s.codes[len(s.codes)-1]
}

type fixture struct {
	engine      *onboarding.Engine
	invitations *onboarding.MemoryInvitationRepo
	accounts    *onboarding.MemoryAccountRepo
	sender      *stubSender
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	c := memory.New(time.Minute, 0)
	t.Cleanup(func() { c.Close() })

	sender := &stubSender{}
	f := &fixture{
		invitations: onboarding.NewMemoryInvitationRepo(),
		accounts:    onboarding.NewMemoryAccountRepo(),
		sender:      sender,
	}
	f.engine = onboarding.NewEngine(
		f.invitations,
		f.accounts,
		identity.NewUserAuth(4),
		identity.DefaultPasswordPolicy(),
		otp.NewChallenges(c, sender, 10*time.Minute, 5),
	)
	return f
}

// seed creates a pending account and its invitation.
func (f *fixture) seed(t *testing.T, kind onboarding.Kind, code, mobile string) *onboarding.Account {
	t.Helper()
	ctx := context.Background()

	acct := &onboarding.Account{
		ID:         uuid.NewString(),
		Kind:       kind,
		Mobile:     mobile,
		Email:      "person@example.com",
		FirstName:  "Asha",
		LastName:   "Rao",
		ClinicName: "Sunrise Clinic",
	}
	if kind == onboarding.KindStaff {
		acct.Role = "receptionist"
	}
	if err := f.accounts.Create(ctx, acct); err != nil {
		t.Fatalf("seed account: %v", err)
	}

	inv := &onboarding.Invitation{
		ID:        uuid.NewString(),
		Code:      code,
		Kind:      kind,
		AccountID: acct.ID,
		SentAt:    time.Now(),
		ExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	if err := f.invitations.Create(ctx, inv); err != nil {
		t.Fatalf("seed invitation: %v", err)
	}
	return acct
}

func TestVerify_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindStaff, "code-1", "9876543210")
	ctx := context.Background()

	first, err := f.engine.Verify(ctx, onboarding.KindStaff, "code-1")
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if first.Name != "Asha Rao" || first.ClinicName != "Sunrise Clinic" || first.Role != "receptionist" {
		t.Errorf("unexpected display info %+v", first)
	}
	if first.Mobile != "******3210" {
		t.Errorf("mobile should be masked, got %q", first.Mobile)
	}

	// Repeat verification changes nothing and keeps working
	second, err := f.engine.Verify(ctx, onboarding.KindStaff, "code-1")
	if err != nil {
		t.Fatalf("second Verify failed: %v", err)
	}
	if *second != *first {
		t.Errorf("Verify is not idempotent: %+v vs %+v", second, first)
	}

	// The flow can still proceed
	if _, err := f.engine.SetPassword(ctx, onboarding.KindStaff, "code-1", "password1"); err != nil {
		t.Errorf("SetPassword after repeated Verify failed: %v", err)
	}
}

func TestVerify_UnknownAndWrongKind(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindStaff, "code-1", "9876543210")
	ctx := context.Background()

	if _, err := f.engine.Verify(ctx, onboarding.KindStaff, "nope"); !errors.Is(err, onboarding.ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential for unknown code, got %v", err)
	}

	// A staff code presented on the patient flow is invalid
	if _, err := f.engine.Verify(ctx, onboarding.KindPatient, "code-1"); !errors.Is(err, onboarding.ErrInvalidCredential) {
		t.Errorf("expected ErrInvalidCredential for kind mismatch, got %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	f := newFixture(t)
	acct := f.seed(t, onboarding.KindPatient, "code-1", "9876543210")
	ctx := context.Background()

	// Replace with an expired invitation
	f.invitations.Consume(ctx, "code-1")
	expired := &onboarding.Invitation{
		ID:        uuid.NewString(),
		Code:      "code-old",
		Kind:      onboarding.KindPatient,
		AccountID: acct.ID,
		SentAt:    time.Now().Add(-8 * 24 * time.Hour),
		ExpiresAt: time.Now().Add(-24 * time.Hour),
	}
	if err := f.invitations.Create(ctx, expired); err != nil {
		t.Fatalf("create expired invitation: %v", err)
	}

	if _, err := f.engine.Verify(ctx, onboarding.KindPatient, "code-old"); !errors.Is(err, onboarding.ErrExpiredCredential) {
		t.Errorf("expected ErrExpiredCredential, got %v", err)
	}
	if _, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-old", "password1"); !errors.Is(err, onboarding.ErrExpiredCredential) {
		t.Errorf("expected ErrExpiredCredential from SetPassword, got %v", err)
	}
}

func TestSetPassword_PolicyBoundary(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindPatient, "code-1", "9876543210")
	ctx := context.Background()

	// 7 characters fails
	if _, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "abc1234"); !errors.Is(err, onboarding.ErrWeakPassword) {
		t.Errorf("expected ErrWeakPassword for 7 chars, got %v", err)
	}

	// 8 characters passes
	identifier, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "abcd1234")
	if err != nil {
		t.Fatalf("SetPassword with 8 chars failed: %v", err)
	}
	if identifier != "9876543210" {
		t.Errorf("unexpected identifier %q", identifier)
	}
}

func TestVerifyOTP_BeforeSetPassword(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindPatient, "code-1", "9876543210")

	err := f.engine.VerifyOTP(context.Background(), "9876543210", "123456")
	if !errors.Is(err, otp.ErrExpired) {
		t.Errorf("expected ErrExpired before SetPassword, got %v", err)
	}
}

func TestFullActivationFlow(t *testing.T) {
	f := newFixture(t)
	acct := f.seed(t, onboarding.KindStaff, "code-1", "9876543210")
	ctx := context.Background()

	identifier, err := f.engine.SetPassword(ctx, onboarding.KindStaff, "code-1", "password1")
	if err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}

	if err := f.engine.VerifyOTP(ctx, identifier, f.sender.lastCode(t)); err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}

	// Account is active with a working password
	got, err := f.accounts.Get(ctx, acct.ID)
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if !got.Active || got.ActivatedAt == nil {
		t.Error("account should be active")
	}
	if err := identity.NewUserAuth(4).VerifyPassword(got.PasswordHash, "password1"); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}

	// Invitation is consumed
	inv, err := f.invitations.GetByCode(ctx, "code-1")
	if err != nil {
		t.Fatalf("load invitation: %v", err)
	}
	if !inv.Consumed || inv.ConsumedAt == nil {
		t.Error("invitation should be consumed")
	}

	// Every step is terminal now
	if _, err := f.engine.Verify(ctx, onboarding.KindStaff, "code-1"); !errors.Is(err, onboarding.ErrAlreadyActivated) {
		t.Errorf("Verify after activation: expected ErrAlreadyActivated, got %v", err)
	}
	if _, err := f.engine.SetPassword(ctx, onboarding.KindStaff, "code-1", "password2"); !errors.Is(err, onboarding.ErrAlreadyActivated) {
		t.Errorf("SetPassword after activation: expected ErrAlreadyActivated, got %v", err)
	}
	if err := f.engine.VerifyOTP(ctx, identifier, "123456"); !errors.Is(err, onboarding.ErrAlreadyActivated) {
		t.Errorf("VerifyOTP after activation: expected ErrAlreadyActivated, got %v", err)
	}
}

func TestSetPassword_ReplacesChallenge(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindPatient, "code-1", "9876543210")
	ctx := context.Background()

	if _, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "password1"); err != nil {
		t.Fatalf("first SetPassword failed: %v", err)
	}
	oldCode := f.sender.lastCode(t)

	if _, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "password2"); err != nil {
		t.Fatalf("second SetPassword failed: %v", err)
	}
	newCode := f.sender.lastCode(t)

	if oldCode != newCode {
		if err := f.engine.VerifyOTP(ctx, "9876543210", oldCode); !errors.Is(err, otp.ErrMismatch) {
			t.Errorf("stale code should mismatch, got %v", err)
		}
	}

	if err := f.engine.VerifyOTP(ctx, "9876543210", newCode); err != nil {
		t.Errorf("fresh code should verify, got %v", err)
	}

	// The second password is the one that counts
	acct, _ := f.accounts.GetByMobile(ctx, "9876543210")
	if err := identity.NewUserAuth(4).VerifyPassword(acct.PasswordHash, "password2"); err != nil {
		t.Errorf("expected second password to be stored: %v", err)
	}
}

func TestSetPassword_DeliveryFailureIsRetriable(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindPatient, "code-1", "9876543210")
	ctx := context.Background()

	f.sender.fail = errors.New("gateway down")
	_, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "password1")
	if !errors.Is(err, otp.ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}

	// Retry the same step once the provider recovers
	f.sender.fail = nil
	identifier, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "password1")
	if err != nil {
		t.Fatalf("retried SetPassword failed: %v", err)
	}
	if err := f.engine.VerifyOTP(ctx, identifier, f.sender.lastCode(t)); err != nil {
		t.Errorf("VerifyOTP after retry failed: %v", err)
	}
}

func TestVerifyOTP_ConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t)
	f.seed(t, onboarding.KindPatient, "code-1", "9876543210")
	ctx := context.Background()

	if _, err := f.engine.SetPassword(ctx, onboarding.KindPatient, "code-1", "password1"); err != nil {
		t.Fatalf("SetPassword failed: %v", err)
	}
	code := f.sender.lastCode(t)

	const workers = 16
	var wg sync.WaitGroup
	results := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = f.engine.VerifyOTP(ctx, "9876543210", code)
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, onboarding.ErrAlreadyActivated),
			errors.Is(err, otp.ErrExpired),
			errors.Is(err, otp.ErrMismatch):
			// losers observe a terminal or dead-challenge error
		default:
			t.Errorf("unexpected loser error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 winner, got %d", successes)
	}

	// The invitation was consumed exactly once
	inv, _ := f.invitations.GetByCode(ctx, "code-1")
	if !inv.Consumed {
		t.Error("invitation should be consumed")
	}
}
