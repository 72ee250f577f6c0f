package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/micro-nova/slidered/internal/models"
)

// OSFS stores documents on the local filesystem.
// Writes go to a temp file in the target directory and are renamed into
// place, so a crash or cancellation never leaves a half-written document.
type OSFS struct {
	root string
}

// NewOSFS returns an OSFS resolving relative URIs against root.
func NewOSFS(root string) *OSFS {
	return &OSFS{root: root}
}

// Path returns the filesystem path a URI maps to.
func (f *OSFS) Path(uri string) string { return ToPath(f.root, uri) }

// Read returns the content of the file at uri.
func (f *OSFS) Read(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	data, err := os.ReadFile(f.Path(uri))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %w", uri, models.ErrIO, err)
	}
	return data, nil
}

// Write atomically replaces the file at uri with data.
func (f *OSFS) Write(ctx context.Context, uri string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	path := f.Path(uri)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}

	// Last point at which the write can still be abandoned.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("write %s: %w", uri, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("write %s: %w: %w", uri, models.ErrIO, err)
	}
	committed = true
	return nil
}

// Remove deletes the file at uri. A missing file is not an error.
func (f *OSFS) Remove(ctx context.Context, uri string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove %s: %w", uri, err)
	}
	if err := os.Remove(f.Path(uri)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w: %w", uri, models.ErrIO, err)
	}
	return nil
}

// Ensure OSFS implements FS
var _ FS = (*OSFS)(nil)
