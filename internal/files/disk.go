package files

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// DiskStore implements Store on the local filesystem. References are paths
// relative to the root directory, so the root can move without invalidating
// stored jobs.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if needed and returns a DiskStore.
func NewDiskStore(root string) (*DiskStore, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &DiskStore{root: root}, nil
}

func (s *DiskStore) Save(_ context.Context, name string, r io.Reader) (string, error) {
	ref := filepath.Join(uuid.NewString(), sanitizeName(name))
	path := filepath.Join(s.root, ref)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create document directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("create document file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write document file: %w", err)
	}
	return ref, nil
}

func (s *DiskStore) Read(_ context.Context, ref string) ([]byte, error) {
	clean := filepath.Clean(ref)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, ErrNotFound
	}
	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read document file: %w", err)
	}
	return data, nil
}

// sanitizeName keeps only the base name and replaces characters that are
// unsafe in filenames.
func sanitizeName(name string) string {
	base := filepath.Base(name)
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		base = "upload"
	}
	return base
}
