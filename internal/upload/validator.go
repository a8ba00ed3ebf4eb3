package upload

import (
	"fmt"
	"path"
	"strings"
)

// MaxFileBytes is the per-file size cap (10 MiB).
const MaxFileBytes = 10 << 20

// MaxBatchFiles is the per-request file cap.
const MaxBatchFiles = 5

// allowedExtensions is the document type allow-list.
var allowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"bmp":  {},
	"tiff": {},
	"webp": {},
}

// ValidateFile checks one file against the intake rules: extension
// allow-list first, then the size cap. The same check gates both the
// handler pre-check and the engine.
func ValidateFile(filename string, size int64) error {
	ext := Extension(filename)
	if _, ok := allowedExtensions[ext]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedFileType, filename)
	}
	if size > MaxFileBytes {
		return fmt.Errorf("%w: %q exceeds %d bytes", ErrFileTooLarge, filename, MaxFileBytes)
	}
	return nil
}

// Extension returns the lowercased extension after the final dot,
// without the dot. Files without an extension return "".
func Extension(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	idx := strings.LastIndex(base, ".")
	if idx < 0 || idx == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[idx+1:])
}

// TitleFromFilename returns the filename stem used as the document title.
func TitleFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if idx := strings.LastIndex(base, "."); idx > 0 {
		return base[:idx]
	}
	return base
}
