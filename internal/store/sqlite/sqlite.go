// Package sqlite implements a SQLite-based persistence driver using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ezeehealth/clinicportal-go/internal/onboarding"
	"github.com/ezeehealth/clinicportal-go/internal/store"
	"github.com/ezeehealth/clinicportal-go/internal/upload"
)

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the SQLite database and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(d.dataDir, "clinicportal.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// "database is locked" errors under concurrent use.
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database pool: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.AutoMigrate(
		&onboarding.Invitation{},
		&onboarding.Account{},
		&upload.UploadLink{},
		&upload.Document{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	d.db = nil
	return sqlDB.Close()
}

// Invitations returns the invitation repository.
func (d *Driver) Invitations() onboarding.InvitationRepo {
	return &invitationRepo{db: d.db}
}

// Accounts returns the account repository.
func (d *Driver) Accounts() onboarding.AccountRepo {
	return &accountRepo{db: d.db}
}

// UploadLinks returns the upload link repository.
func (d *Driver) UploadLinks() upload.LinkRepo {
	return &linkRepo{db: d.db}
}

// Documents returns the document repository.
func (d *Driver) Documents() upload.DocumentRepo {
	return &documentRepo{db: d.db}
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return store.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return store.ErrAlreadyExists
	default:
		return err
	}
}

type invitationRepo struct {
	db *gorm.DB
}

func (r *invitationRepo) Create(ctx context.Context, inv *onboarding.Invitation) error {
	return translate(r.db.WithContext(ctx).Create(inv).Error)
}

func (r *invitationRepo) GetByCode(ctx context.Context, code string) (*onboarding.Invitation, error) {
	var inv onboarding.Invitation
	if err := r.db.WithContext(ctx).First(&inv, "code = ?", code).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r *invitationRepo) GetPendingByAccount(ctx context.Context, accountID string) (*onboarding.Invitation, error) {
	var inv onboarding.Invitation
	err := r.db.WithContext(ctx).First(&inv, "account_id = ? AND consumed = ?", accountID, false).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

// Consume flips the invitation to consumed with a conditional update.
// The WHERE clause guarantees that racing calls see exactly one
// affected row.
func (r *invitationRepo) Consume(ctx context.Context, code string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&onboarding.Invitation{}).
		Where("code = ? AND consumed = ?", code, false).
		Updates(map[string]any{"consumed": true, "consumed_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}

	// No row matched: either the code is unknown or someone else won.
	var inv onboarding.Invitation
	if err := r.db.WithContext(ctx).First(&inv, "code = ?", code).Error; err != nil {
		return translate(err)
	}
	return onboarding.ErrInviteConsumed
}

type accountRepo struct {
	db *gorm.DB
}

func (r *accountRepo) Create(ctx context.Context, acct *onboarding.Account) error {
	return translate(r.db.WithContext(ctx).Create(acct).Error)
}

func (r *accountRepo) Get(ctx context.Context, id string) (*onboarding.Account, error) {
	var acct onboarding.Account
	if err := r.db.WithContext(ctx).First(&acct, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

func (r *accountRepo) GetByMobile(ctx context.Context, mobile string) (*onboarding.Account, error) {
	var acct onboarding.Account
	if err := r.db.WithContext(ctx).First(&acct, "mobile = ?", mobile).Error; err != nil {
		return nil, translate(err)
	}
	return &acct, nil
}

func (r *accountRepo) SetPasswordHash(ctx context.Context, id, hash string) error {
	res := r.db.WithContext(ctx).
		Model(&onboarding.Account{}).
		Where("id = ?", id).
		Update("password_hash", hash)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *accountRepo) Activate(ctx context.Context, id string) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&onboarding.Account{}).
		Where("id = ?", id).
		Updates(map[string]any{"active": true, "activated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

type linkRepo struct {
	db *gorm.DB
}

func (r *linkRepo) Create(ctx context.Context, link *upload.UploadLink) error {
	return translate(r.db.WithContext(ctx).Create(link).Error)
}

func (r *linkRepo) GetByToken(ctx context.Context, token string) (*upload.UploadLink, error) {
	var link upload.UploadLink
	if err := r.db.WithContext(ctx).First(&link, "token = ?", token).Error; err != nil {
		return nil, translate(err)
	}
	return &link, nil
}

type documentRepo struct {
	db *gorm.DB
}

func (r *documentRepo) Create(ctx context.Context, doc *upload.Document) error {
	return translate(r.db.WithContext(ctx).Create(doc).Error)
}

func (r *documentRepo) ListByPatient(ctx context.Context, patientID string) ([]*upload.Document, error) {
	var docs []*upload.Document
	if err := r.db.WithContext(ctx).Where("patient_id = ?", patientID).Find(&docs).Error; err != nil {
		return nil, err
	}
	return docs, nil
}

// Compile-time interface checks
var (
	_ store.Driver              = (*Driver)(nil)
	_ onboarding.InvitationRepo = (*invitationRepo)(nil)
	_ onboarding.AccountRepo    = (*accountRepo)(nil)
	_ upload.LinkRepo           = (*linkRepo)(nil)
	_ upload.DocumentRepo       = (*documentRepo)(nil)
)
