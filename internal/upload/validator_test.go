package upload_test

import (
	"errors"
	"testing"

	"github.com/ezeehealth/clinicportal-go/internal/upload"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		size     int64
		wantErr  error
	}{
		{"pdf ok", "report.pdf", 1024, nil},
		{"uppercase extension ok", "SCAN.PDF", 1024, nil},
		{"jpeg ok", "xray.jpeg", 1024, nil},
		{"webp ok", "photo.webp", 1024, nil},
		{"at size cap", "big.pdf", upload.MaxFileBytes, nil},
		{"over size cap", "huge.pdf", upload.MaxFileBytes + 1, upload.ErrFileTooLarge},
		{"executable rejected", "malware.exe", 10, upload.ErrUnsupportedFileType},
		{"no extension rejected", "README", 10, upload.ErrUnsupportedFileType},
		{"trailing dot rejected", "file.", 10, upload.ErrUnsupportedFileType},
		{"double extension uses last", "notes.pdf.exe", 10, upload.ErrUnsupportedFileType},
		{"oversized and wrong type reports type first", "big.exe", upload.MaxFileBytes + 1, upload.ErrUnsupportedFileType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := upload.ValidateFile(tt.filename, tt.size)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"report.pdf", "pdf"},
		{"SCAN.JPG", "jpg"},
		{"archive.tar.gz", "gz"},
		{"noext", ""},
		{"trailing.", ""},
		{"dir/inner.png", "png"},
		{"C:\\Users\\me\\scan.tiff", "tiff"},
	}

	for _, tt := range tests {
		if got := upload.Extension(tt.filename); got != tt.want {
			t.Errorf("Extension(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}

func TestTitleFromFilename(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"blood-report.pdf", "blood-report"},
		{"x ray 2026.jpeg", "x ray 2026"},
		{"noext", "noext"},
		{"dir/inner.png", "inner"},
	}

	for _, tt := range tests {
		if got := upload.TitleFromFilename(tt.filename); got != tt.want {
			t.Errorf("TitleFromFilename(%q) = %q, want %q", tt.filename, got, tt.want)
		}
	}
}
