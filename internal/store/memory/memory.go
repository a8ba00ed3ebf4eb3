// Package memory implements an in-process persistence driver for
// development and tests.
package memory

import (
	"context"

	"github.com/ezeehealth/clinicportal-go/internal/onboarding"
	"github.com/ezeehealth/clinicportal-go/internal/store"
	"github.com/ezeehealth/clinicportal-go/internal/upload"
)

func init() {
	store.Register("memory", NewDriver)
}

// Driver bundles the in-memory repositories behind the store.Driver
// contract. Data does not survive a restart.
type Driver struct {
	invitations *onboarding.MemoryInvitationRepo
	accounts    *onboarding.MemoryAccountRepo
	links       *upload.MemoryLinkRepo
	documents   *upload.MemoryDocumentRepo
}

// NewDriver creates a new memory driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	return &Driver{
		invitations: onboarding.NewMemoryInvitationRepo(),
		accounts:    onboarding.NewMemoryAccountRepo(),
		links:       upload.NewMemoryLinkRepo(),
		documents:   upload.NewMemoryDocumentRepo(),
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string { return "memory" }

// Init is a no-op for the memory driver.
func (d *Driver) Init(ctx context.Context) error { return nil }

// Close is a no-op for the memory driver.
func (d *Driver) Close() error { return nil }

// Invitations returns the invitation repository.
func (d *Driver) Invitations() onboarding.InvitationRepo { return d.invitations }

// Accounts returns the account repository.
func (d *Driver) Accounts() onboarding.AccountRepo { return d.accounts }

// UploadLinks returns the upload link repository.
func (d *Driver) UploadLinks() upload.LinkRepo { return d.links }

// Documents returns the document repository.
func (d *Driver) Documents() upload.DocumentRepo { return d.documents }

var _ store.Driver = (*Driver)(nil)
