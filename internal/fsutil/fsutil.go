// Package fsutil holds the filesystem operations the pipeline stages share.
package fsutil

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// EnsureDir creates dir and any missing parents. It succeeds when dir already
// exists and is safe to call concurrently for the same path.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure dir %s: %w", dir, err)
	}
	return nil
}

// IsFile reports whether path exists and is a regular file.
func IsFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Transaction chains filesystem operations, stopping at the first failure.
// Check Err once the sequence is done.
type Transaction struct {
	Err error
}

// MkDir creates dir and its parents.
func (tr *Transaction) MkDir(dir string) {
	if tr.Err != nil {
		return
	}
	tr.Err = EnsureDir(dir)
}

// Copy copies from onto to through a temporary file in the target directory
// and renames it into place, so readers never see a partial copy.
func (tr *Transaction) Copy(from, to string) {
	if tr.Err != nil {
		return
	}
	tr.Err = copyFile(from, to)
}

// Touch creates path if it does not exist. Existing content is left intact.
func (tr *Transaction) Touch(path string) {
	if tr.Err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		tr.Err = fmt.Errorf("touch %s: %w", path, err)
		return
	}
	if err := f.Close(); err != nil {
		tr.Err = fmt.Errorf("touch %s: %w", path, err)
	}
}

// RmFile removes path. A missing file is not an error.
func (tr *Transaction) RmFile(path string) {
	if tr.Err != nil {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		tr.Err = fmt.Errorf("remove %s: %w", path, err)
	}
}

func copyFile(from, to string) error {
	source, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	defer source.Close()

	tmp, err := os.CreateTemp(filepath.Dir(to), "."+filepath.Base(to)+".*")
	if err != nil {
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, source); err != nil {
		tmp.Close()
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	if err := os.Rename(tmp.Name(), to); err != nil {
		return fmt.Errorf("copy %s to %s: %w", from, to, err)
	}
	return nil
}
