// Package atomicfile writes files through a temporary sibling so readers
// never observe a partially written config.
package atomicfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Write replaces path with data. The bytes go to a synced temp file in the
// same directory, which is then renamed over path. The parent directory is
// created if missing. On failure the temp file is removed.
func Write(path string, data []byte, perm os.FileMode) error {
	tmp, err := stage(path, data, perm)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// WriteIfAbsent creates path with data unless it already exists. The temp
// file is hard-linked into place, so a concurrent creator cannot be
// clobbered. It reports whether the file was created.
func WriteIfAbsent(path string, data []byte, perm os.FileMode) (bool, error) {
	tmp, err := stage(path, data, perm)
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("link temp file: %w", err)
	}
	return true, nil
}

// stage writes data to a synced temp file next to path and returns its name.
func stage(path string, data []byte, perm os.FileMode) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(name)
		return "", fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(name, perm); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("chmod temp file: %w", err)
	}
	return name, nil
}
