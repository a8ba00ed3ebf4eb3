// Package upload implements token-gated document intake: link
// verification, per-file validation, and partial-success batch upload.
package upload

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ezeehealth/clinicportal-go/internal/store"
)

var (
	// ErrInvalidToken is returned for unknown upload tokens.
	ErrInvalidToken = errors.New("upload token invalid")

	// ErrExpiredToken is returned for tokens past their expiry.
	ErrExpiredToken = errors.New("upload token expired")

	// ErrNoFiles is returned for an empty batch.
	ErrNoFiles = errors.New("no files in request")

	// ErrTooManyFiles is returned before any file is processed when the
	// batch exceeds MaxBatchFiles.
	ErrTooManyFiles = errors.New("too many files in request")

	// ErrNoValidFiles is returned when every attempted file failed
	// validation or storage. Per-file reasons accompany the result.
	ErrNoValidFiles = errors.New("no valid files in request")

	// ErrUnsupportedFileType is a per-file validation failure.
	ErrUnsupportedFileType = errors.New("unsupported file type")

	// ErrFileTooLarge is a per-file validation failure.
	ErrFileTooLarge = errors.New("file too large")
)

// UploadLink is a shareable, accountless upload credential.
// Links stay usable for any number of batches until they expire.
type UploadLink struct {
	Token       string    `gorm:"primaryKey" json:"token"`
	PatientID   string    `gorm:"index" json:"patient_id"`
	PatientName string    `json:"patient_name"`
	ClinicID    string    `json:"clinic_id"`
	ClinicName  string    `json:"clinic_name"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Expired reports whether the link is past its expiry.
func (l *UploadLink) Expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// Document records one stored file.
type Document struct {
	ID            string    `gorm:"primaryKey" json:"id"`
	PatientID     string    `gorm:"index" json:"patient_id"`
	ClinicID      string    `json:"clinic_id"`
	Title         string    `json:"title"`
	Category      string    `json:"category"`
	StorageKey    string    `json:"-"`
	FileExtension string    `json:"file_extension"`
	FileSize      int64     `json:"file_size"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// LinkRepo persists upload links.
type LinkRepo interface {
	Create(ctx context.Context, link *UploadLink) error

	// GetByToken returns store.ErrNotFound for unknown tokens.
	GetByToken(ctx context.Context, token string) (*UploadLink, error)
}

// DocumentRepo persists document records.
type DocumentRepo interface {
	Create(ctx context.Context, doc *Document) error
	ListByPatient(ctx context.Context, patientID string) ([]*Document, error)
}

// MemoryLinkRepo is an in-memory LinkRepo for tests and the memory store
// driver.
type MemoryLinkRepo struct {
	mu      sync.RWMutex
	byToken map[string]*UploadLink
}

// NewMemoryLinkRepo creates an empty in-memory link repo.
func NewMemoryLinkRepo() *MemoryLinkRepo {
	return &MemoryLinkRepo{byToken: make(map[string]*UploadLink)}
}

func (r *MemoryLinkRepo) Create(ctx context.Context, link *UploadLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byToken[link.Token]; ok {
		return store.ErrAlreadyExists
	}
	cp := *link
	r.byToken[link.Token] = &cp
	return nil
}

func (r *MemoryLinkRepo) GetByToken(ctx context.Context, token string) (*UploadLink, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	link, ok := r.byToken[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *link
	return &cp, nil
}

// MemoryDocumentRepo is an in-memory DocumentRepo for tests and the
// memory store driver.
type MemoryDocumentRepo struct {
	mu   sync.RWMutex
	byID map[string]*Document
}

// NewMemoryDocumentRepo creates an empty in-memory document repo.
func NewMemoryDocumentRepo() *MemoryDocumentRepo {
	return &MemoryDocumentRepo{byID: make(map[string]*Document)}
}

func (r *MemoryDocumentRepo) Create(ctx context.Context, doc *Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[doc.ID]; ok {
		return store.ErrAlreadyExists
	}
	cp := *doc
	r.byID[doc.ID] = &cp
	return nil
}

func (r *MemoryDocumentRepo) ListByPatient(ctx context.Context, patientID string) ([]*Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Document
	for _, doc := range r.byID {
		if doc.PatientID == patientID {
			cp := *doc
			out = append(out, &cp)
		}
	}
	return out, nil
}
