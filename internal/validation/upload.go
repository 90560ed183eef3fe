package validation

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	apierrors "borsapulse/internal/errors"
)

// UploadName checks a client-supplied file name. Only the base name is kept
// so stored batches never carry directory components.
func UploadName(name string) (string, error) {
	if strings.ContainsRune(name, 0) {
		return "", apierrors.ErrValidation("file", "file name contains a NUL byte")
	}

	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == "/" {
		return "", apierrors.ErrValidation("file", "file name is required")
	}
	if len(base) > 255 {
		return "", apierrors.ErrValidation("file", "file name must be at most 255 characters")
	}
	// Office lock files are created next to open workbooks.
	if strings.HasPrefix(base, "~$") {
		return "", apierrors.ErrValidation("file", fmt.Sprintf("%s is a temporary Excel file", base))
	}
	return base, nil
}

// UploadSize rejects empty files and files above max bytes
func UploadSize(size, max int64) error {
	if size == 0 {
		return apierrors.ErrValidation("file", "file is empty")
	}
	if max > 0 && size > max {
		return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Uploaded file exceeds maximum allowed size",
			map[string]int64{"max_size": max, "size": size})
	}
	return nil
}

// LocalFile checks that path names a readable regular file and returns its
// size.
func LocalFile(path string) (int64, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	return info.Size(), nil
}
