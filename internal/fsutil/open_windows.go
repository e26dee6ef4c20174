//go:build windows

package fsutil

import (
	"os"

	"github.com/hpungsan/sift/internal/errors"
)

// OpenNoFollow opens path for writing.
// Windows has no O_NOFOLLOW; symlink creation there needs elevated privileges.
func OpenNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	return os.OpenFile(path, flag, perm)
}

// OpenNoFollowRead opens path read-only. See OpenNoFollow.
func OpenNoFollowRead(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, err
	}
	return f, nil
}
