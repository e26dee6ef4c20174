package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/sift/internal/errors"
)

// MaxIngestBytes caps the size of a single ingested file.
const MaxIngestBytes = 8 << 20

// ingestExtensions maps accepted file extensions to whether they hold markdown.
var ingestExtensions = map[string]bool{
	".txt":      false,
	".md":       true,
	".markdown": true,
}

// ValidateIngestPath checks a file before ingest reads it:
// 1. Path traversal (.. sequences)
// 2. Extension (.txt, .md, .markdown)
// 3. Existence, regular file, size limit
// 4. Symlink safety (neither the file nor its parent directory may be a symlink)
//
// It returns the cleaned absolute path and whether the file is markdown.
// The file is later opened with O_NOFOLLOW, so a symlink swapped in after
// this check is still refused.
func ValidateIngestPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) == "" {
		return "", false, errors.NewInvalidRequest("path is required")
	}

	// Reject paths containing ".." (traversal attempt)
	if containsTraversal(path) {
		return "", false, errors.NewInvalidRequest("path must not contain directory traversal (..)")
	}

	cleaned := filepath.Clean(path)
	markdown, ok := ingestExtensions[strings.ToLower(filepath.Ext(cleaned))]
	if !ok {
		return "", false, errors.NewInvalidRequest("path must have a .txt, .md or .markdown extension")
	}

	absPath, err := filepath.Abs(cleaned)
	if err != nil {
		return "", false, errors.NewInvalidRequest(fmt.Sprintf("invalid path: %v", err))
	}

	// Verify the parent directory is not a symlink.
	if info, err := os.Lstat(filepath.Dir(absPath)); err == nil {
		if info.Mode()&os.ModeSymlink != 0 {
			return "", false, errors.NewInvalidRequest("parent directory must not be a symlink")
		}
	}

	info, err := os.Lstat(absPath)
	if os.IsNotExist(err) {
		return "", false, errors.NewFileNotFound(path)
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return "", false, errors.NewInvalidRequest("path must not be a symlink")
	}
	if !info.Mode().IsRegular() {
		return "", false, errors.NewInvalidRequest("path must be a regular file")
	}
	if info.Size() > MaxIngestBytes {
		return "", false, errors.NewInvalidRequest(
			fmt.Sprintf("file exceeds %d bytes: %s", MaxIngestBytes, path))
	}

	return absPath, markdown, nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}
