package receipt

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Storage keeps receipt images. The returned reference is opaque to callers.
type Storage interface {
	// Save stores data under name and returns the image reference
	Save(ctx context.Context, name string, data []byte) (string, error)

	// Get retrieves an image by reference
	Get(ctx context.Context, ref string) ([]byte, error)

	// Delete removes an image
	Delete(ctx context.Context, ref string) error
}

// LocalStorage stores images in a directory on the local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates the directory if needed
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", classifyFSError(err))
	}
	return &LocalStorage{basePath: basePath}, nil
}

// path resolves ref inside basePath, rejecting anything that escapes it
func (l *LocalStorage) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("invalid image reference %q: %w", ref, ErrNotFound)
	}
	return filepath.Join(l.basePath, ref), nil
}

// Save writes the image to basePath/name
func (l *LocalStorage) Save(ctx context.Context, name string, data []byte) (string, error) {
	path, err := l.path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", classifyFSError(err))
	}
	return name, nil
}

// Get reads an image from basePath
func (l *LocalStorage) Get(ctx context.Context, ref string) ([]byte, error) {
	path, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading file: %w", classifyFSError(err))
	}
	return data, nil
}

// Delete removes an image from basePath
func (l *LocalStorage) Delete(ctx context.Context, ref string) error {
	path, err := l.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("deleting file: %w", classifyFSError(err))
	}
	return nil
}

// classifyFSError maps filesystem errors onto the package sentinels
func classifyFSError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return err
}
