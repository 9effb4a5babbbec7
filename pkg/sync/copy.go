package sync

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/illumination-k/pathmirror/pkg/sync/catalog"
)

// TempFilePrefix marks in-flight copies so watchers can ignore them
const TempFilePrefix = catalog.TempFilePrefix

// copyFile copies src over dst preserving content, permissions and mtime.
// The content is written to a temp file beside dst and renamed into place.
// It returns the modification time given to dst.
func copyFile(fs afero.Fs, src, dst string) (mtime time.Time, err error) {
	in, err := fs.Open(src)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to open source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to stat source: %w", err)
	}
	if !info.Mode().IsRegular() {
		return time.Time{}, fmt.Errorf("source %s is not a regular file", src)
	}

	dir := filepath.Dir(dst)
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return time.Time{}, fmt.Errorf("failed to create destination directory: %w", err)
	}

	tmp, err := afero.TempFile(fs, dir, TempFilePrefix+"*.tmp")
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			_ = fs.Remove(tmpPath)
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return time.Time{}, fmt.Errorf("failed to copy content: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return time.Time{}, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = fs.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		return time.Time{}, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err = fs.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return time.Time{}, fmt.Errorf("failed to set modification time: %w", err)
	}

	if err = fs.Rename(tmpPath, dst); err != nil {
		return time.Time{}, fmt.Errorf("failed to move temp file into place: %w", err)
	}
	return info.ModTime(), nil
}
