// Package fileutil writes files so readers never observe a partial write.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFileAtomic replaces filename with data. The data goes to a temporary
// file in the same directory which is synced and renamed over filename.
func WriteFileAtomic(filename string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, filename); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	committed = true
	return nil
}

// AppendFileAtomic appends data to filename, creating it when missing. The
// existing content and data are written out together with WriteFileAtomic,
// so a crash leaves either the old file or the extended one.
func AppendFileAtomic(filename string, data []byte, perm os.FileMode) error {
	existing, err := os.ReadFile(filename)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("read %s: %w", filename, err)
	}
	if info, err := os.Stat(filename); err == nil {
		perm = info.Mode().Perm()
	}

	out := make([]byte, 0, len(existing)+len(data))
	out = append(out, existing...)
	out = append(out, data...)
	return WriteFileAtomic(filename, out, perm)
}
