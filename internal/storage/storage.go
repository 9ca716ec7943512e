package storage

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by Read when the object does not exist
var ErrNotFound = errors.New("storage: object not found")

// Storage interface for persisting small documents such as the settings file
type Storage interface {
	// Write replaces the object at path with data
	Write(ctx context.Context, path string, data []byte) error

	// Read returns the object at path, or ErrNotFound
	Read(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object at path; deleting a missing object is not an error
	Delete(ctx context.Context, path string) error

	// Exists checks if an object exists
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalStorage implements Storage using local filesystem
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	// Create base directory if it doesn't exist
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, errors.Wrap(err, "failed to create base directory")
	}

	return &LocalStorage{
		baseDir: baseDir,
	}, nil
}

// Write writes data to a temporary file and renames it over path
func (s *LocalStorage) Write(ctx context.Context, path string, data []byte) error {
	fullPath := s.GetFullPath(path)

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "failed to create directory")
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fullPath)+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrap(err, "failed to write file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "failed to close file")
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return errors.Wrap(err, "failed to replace file")
	}

	return nil
}

// Read reads data from a file
func (s *LocalStorage) Read(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(s.GetFullPath(path))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read file")
	}

	return data, nil
}

// Delete deletes a file
func (s *LocalStorage) Delete(ctx context.Context, path string) error {
	if err := os.Remove(s.GetFullPath(path)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete file")
	}

	return nil
}

// Exists checks if a file exists
func (s *LocalStorage) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(s.GetFullPath(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "failed to check file existence")
	}

	return true, nil
}

// GetFullPath returns the full filesystem path for a relative path
func (s *LocalStorage) GetFullPath(path string) string {
	return filepath.Join(s.baseDir, path)
}
