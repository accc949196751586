package driver

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytevault/bytevault/internal/storage/biz"
)

// LocalStore keeps objects on the local filesystem under a base directory.
// Object paths map directly to relative file paths.
type LocalStore struct {
	base          string
	publicBaseURL string
}

// NewLocalStore creates a filesystem-backed store rooted at base
func NewLocalStore(base, publicBaseURL string) (*LocalStore, error) {
	if base == "" {
		return nil, fmt.Errorf("%w: local store base path is required", biz.ErrValidation)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create local store base: %w", err)
	}
	return &LocalStore{
		base:          base,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// Put writes the object through a temp file and renames it into place, so a
// crashed write never leaves a readable partial object.
func (s *LocalStore) Put(ctx context.Context, path string, r io.Reader, size int64, contentType string) error {
	target := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return fmt.Errorf("create temp object: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp object: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish object: %w", err)
	}
	return nil
}

func (s *LocalStore) Get(ctx context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(s.fullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", biz.ErrNotFound, path)
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return f, nil
}

func (s *LocalStore) Delete(ctx context.Context, path string) error {
	err := os.Remove(s.fullPath(path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove object: %w", err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.fullPath(path))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

// PublicURL returns a URL only when the store has a public base configured
func (s *LocalStore) PublicURL(ctx context.Context, path string) (string, error) {
	if s.publicBaseURL == "" {
		return "", nil
	}
	return s.publicBaseURL + "/" + path, nil
}

func (s *LocalStore) fullPath(path string) string {
	return filepath.Join(s.base, filepath.FromSlash(path))
}
