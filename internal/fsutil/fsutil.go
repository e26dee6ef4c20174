// Package fsutil holds the file primitives every on-disk store in sift goes
// through: whole-file replacement via temp file + rename, and single-write
// appends. No caller streams partial content into a live file.
package fsutil

import (
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces path with data. The content is written to a
// sibling temp file, synced, and renamed into place, so readers observe
// either the old file or the new one.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteAtomic(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteAtomic is WriteFileAtomic for content produced by an encoder.
// If write returns an error the destination is left untouched.
func WriteAtomic(path string, perm os.FileMode, write func(w io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generate temp file name: %w", err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := OpenNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", tempPath, err)
	}
	// Close before rename (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tempPath, err)
	}
	file = nil

	// os.Rename would replace a symlink, not its target, but refusing is clearer.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("destination %s is a symlink", path)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("finalize %s: %w", path, err)
	}

	success = true
	return nil
}

// AppendRecord appends record to path with one write(2) on an O_APPEND
// descriptor. When the file is new or empty, header is prepended within the
// same write. Reports whether the header was written.
func AppendRecord(path string, header, record []byte, perm os.FileMode) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return false, fmt.Errorf("create directory: %w", err)
	}

	file, err := OpenNoFollow(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, perm)
	if err != nil {
		return false, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", path, err)
	}

	buf := record
	wroteHeader := false
	if info.Size() == 0 && len(header) > 0 {
		buf = make([]byte, 0, len(header)+len(record))
		buf = append(buf, header...)
		buf = append(buf, record...)
		wroteHeader = true
	}

	n, err := file.Write(buf)
	if err != nil {
		return false, fmt.Errorf("append %s: %w", path, err)
	}
	if n != len(buf) {
		return false, fmt.Errorf("append %s: %w", path, io.ErrShortWrite)
	}
	return wroteHeader, nil
}

// Exists reports whether path exists. Errors other than not-exist are returned.
func Exists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err == nil {
		return true, nil
	}
	if stderrors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// RemoveIfExists removes path, treating a missing file as success.
func RemoveIfExists(path string) error {
	if err := os.Remove(path); err != nil && !stderrors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
