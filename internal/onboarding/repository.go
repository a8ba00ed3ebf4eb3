package onboarding

import (
	"context"
	"sync"
	"time"

	"github.com/ezeehealth/clinicportal-go/internal/store"
)

// InvitationRepo persists invitations.
type InvitationRepo interface {
	Create(ctx context.Context, inv *Invitation) error

	// GetByCode returns store.ErrNotFound for unknown codes.
	GetByCode(ctx context.Context, code string) (*Invitation, error)

	// GetPendingByAccount returns the unconsumed invitation for an account,
	// or store.ErrNotFound.
	GetPendingByAccount(ctx context.Context, accountID string) (*Invitation, error)

	// Consume marks the invitation consumed. The update is conditional on
	// the invitation being unconsumed: concurrent calls see exactly one
	// success, the rest get ErrInviteConsumed.
	Consume(ctx context.Context, code string) error
}

// AccountRepo persists accounts.
type AccountRepo interface {
	Create(ctx context.Context, acct *Account) error

	// Get returns store.ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Account, error)

	// GetByMobile returns store.ErrNotFound for unknown mobiles.
	GetByMobile(ctx context.Context, mobile string) (*Account, error)

	// SetPasswordHash stores the hash. Re-invocable until activation.
	SetPasswordHash(ctx context.Context, id, hash string) error

	// Activate marks the account active with a timestamp.
	Activate(ctx context.Context, id string) error
}

// MemoryInvitationRepo is an in-memory InvitationRepo for tests and the
// memory store driver.
type MemoryInvitationRepo struct {
	mu     sync.RWMutex
	byCode map[string]*Invitation
}

// NewMemoryInvitationRepo creates an empty in-memory invitation repo.
func NewMemoryInvitationRepo() *MemoryInvitationRepo {
	return &MemoryInvitationRepo{byCode: make(map[string]*Invitation)}
}

func (r *MemoryInvitationRepo) Create(ctx context.Context, inv *Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byCode[inv.Code]; ok {
		return store.ErrAlreadyExists
	}
	cp := *inv
	r.byCode[inv.Code] = &cp
	return nil
}

func (r *MemoryInvitationRepo) GetByCode(ctx context.Context, code string) (*Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inv, ok := r.byCode[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *inv
	return &cp, nil
}

func (r *MemoryInvitationRepo) GetPendingByAccount(ctx context.Context, accountID string) (*Invitation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inv := range r.byCode {
		if inv.AccountID == accountID && !inv.Consumed {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *MemoryInvitationRepo) Consume(ctx context.Context, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.byCode[code]
	if !ok {
		return store.ErrNotFound
	}
	if inv.Consumed {
		return ErrInviteConsumed
	}

	now := time.Now()
	inv.Consumed = true
	inv.ConsumedAt = &now
	return nil
}

// MemoryAccountRepo is an in-memory AccountRepo for tests and the memory
// store driver.
type MemoryAccountRepo struct {
	mu   sync.RWMutex
	byID map[string]*Account
}

// NewMemoryAccountRepo creates an empty in-memory account repo.
func NewMemoryAccountRepo() *MemoryAccountRepo {
	return &MemoryAccountRepo{byID: make(map[string]*Account)}
}

func (r *MemoryAccountRepo) Create(ctx context.Context, acct *Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[acct.ID]; ok {
		return store.ErrAlreadyExists
	}
	cp := *acct
	r.byID[acct.ID] = &cp
	return nil
}

func (r *MemoryAccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	acct, ok := r.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *acct
	return &cp, nil
}

func (r *MemoryAccountRepo) GetByMobile(ctx context.Context, mobile string) (*Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, acct := range r.byID {
		if acct.Mobile == mobile {
			cp := *acct
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *MemoryAccountRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	acct.PasswordHash = hash
	return nil
}

func (r *MemoryAccountRepo) Activate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, ok := r.byID[id]
	if !ok {
		return store.ErrNotFound
	}
	now := time.Now()
	acct.Active = true
	acct.ActivatedAt = &now
	return nil
}
