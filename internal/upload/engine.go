package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ezeehealth/clinicportal-go/internal/appctx"
	"github.com/ezeehealth/clinicportal-go/internal/storage"
	"github.com/ezeehealth/clinicportal-go/internal/store"
)

// DefaultCategory is applied when the request does not name one.
const DefaultCategory = "Others"

// File is one incoming file in a batch. Open is called at most once.
type File struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// LinkInfo is the verification view of an upload link.
type LinkInfo struct {
	PatientName string    `json:"patient_name"`
	ClinicName  string    `json:"clinic_name"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// UploadedFile describes one successfully stored document.
type UploadedFile struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Category      string `json:"category"`
	FileExtension string `json:"file_extension"`
	FileSize      int64  `json:"file_size"`
}

// FileError reports one rejected file by its original name.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// BatchResult is the partial-success outcome of one upload batch.
// Entries appear in the order the files were submitted.
type BatchResult struct {
	Uploaded []UploadedFile `json:"uploaded"`
	Errors   []FileError    `json:"errors,omitempty"`
}

// Engine implements upload link verification and batch intake.
type Engine struct {
	links     LinkRepo
	documents DocumentRepo
	blobs     storage.BlobStore
}

// NewEngine wires the upload engine.
func NewEngine(links LinkRepo, documents DocumentRepo, blobs storage.BlobStore) *Engine {
	return &Engine{links: links, documents: documents, blobs: blobs}
}

// resolve fetches the link and enforces expiry. Verification does not
// consume the link; it stays usable for further batches until expiry.
func (e *Engine) resolve(ctx context.Context, token string) (*UploadLink, error) {
	link, err := e.links.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("fetch upload link: %w", err)
	}
	if link.Expired(time.Now()) {
		return nil, ErrExpiredToken
	}
	return link, nil
}

// VerifyToken returns the link context shown before uploading.
// Safe to call any number of times.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*LinkInfo, error) {
	link, err := e.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	return &LinkInfo{
		PatientName: link.PatientName,
		ClinicName:  link.ClinicName,
		ExpiresAt:   link.ExpiresAt,
	}, nil
}

// Upload stores a batch of files against the link's patient.
//
// The token and batch size are checked before any file is touched.
// Files are then processed independently: a failing file never blocks
// the others, and the result reports per-file outcomes in submission
// order. ErrNoValidFiles is returned alongside the result when every
// file failed.
func (e *Engine) Upload(ctx context.Context, token, category string, files []File) (*BatchResult, error) {
	link, err := e.resolve(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > MaxBatchFiles {
		return nil, ErrTooManyFiles
	}
	if category == "" {
		category = DefaultCategory
	}

	type slot struct {
		uploaded *UploadedFile
		failure  *FileError
	}
	slots := make([]slot, len(files))

	var wg sync.WaitGroup
	for i, f := range files {
		wg.Add(1)
		go func(i int, f File) {
			defer wg.Done()

			doc, err := e.storeOne(ctx, link, category, f)
			if err != nil {
				slots[i].failure = &FileError{File: f.Name, Error: failureMessage(err)}
				return
			}
			slots[i].uploaded = &UploadedFile{
				ID:            doc.ID,
				Title:         doc.Title,
				Category:      doc.Category,
				FileExtension: doc.FileExtension,
				FileSize:      doc.FileSize,
			}
		}(i, f)
	}
	wg.Wait()

	result := &BatchResult{Uploaded: []UploadedFile{}}
	for _, s := range slots {
		switch {
		case s.uploaded != nil:
			result.Uploaded = append(result.Uploaded, *s.uploaded)
		case s.failure != nil:
			result.Errors = append(result.Errors, *s.failure)
		}
	}
	if len(result.Uploaded) == 0 {
		return result, ErrNoValidFiles
	}
	return result, nil
}

// storeOne validates, persists, and records a single file.
func (e *Engine) storeOne(ctx context.Context, link *UploadLink, category string, f File) (*Document, error) {
	if err := ValidateFile(f.Name, f.Size); err != nil {
		return nil, err
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", f.Name, err)
	}
	defer rc.Close()

	docID := uuid.NewString()
	ext := Extension(f.Name)
	key := fmt.Sprintf("patients/%s/%s.%s", link.PatientID, docID, ext)

	// The size cap was already checked against the declared size; the
	// limit guards against a reader that delivers more than declared.
	size, err := e.blobs.Put(ctx, key, io.LimitReader(rc, MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("store file %q: %w", f.Name, err)
	}
	if size > MaxFileBytes {
		return nil, fmt.Errorf("%w: %q exceeds %d bytes", ErrFileTooLarge, f.Name, MaxFileBytes)
	}

	doc := &Document{
		ID:            docID,
		PatientID:     link.PatientID,
		ClinicID:      link.ClinicID,
		Title:         TitleFromFilename(f.Name),
		Category:      category,
		StorageKey:    key,
		FileExtension: ext,
		FileSize:      size,
		UploadedAt:    time.Now().UTC(),
	}
	if err := e.documents.Create(ctx, doc); err != nil {
		appctx.GetLogger(ctx).Error("record document", "file", f.Name, "error", err)
		return nil, fmt.Errorf("record document %q: %w", f.Name, err)
	}
	return doc, nil
}

// failureMessage maps a per-file error to the short reason reported to
// the caller. Unexpected errors stay opaque.
func failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFileType):
		return "unsupported file type"
	case errors.Is(err, ErrFileTooLarge):
		return fmt.Sprintf("file too large (max %d bytes)", MaxFileBytes)
	default:
		return "failed to store file"
	}
}
