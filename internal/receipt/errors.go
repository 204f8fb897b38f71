package receipt

import "errors"

var (
	// ErrAlreadyPersisted is returned when saving a receipt that already has an ID
	ErrAlreadyPersisted = errors.New("receipt already persisted")

	// ErrPermissionDenied is returned when image storage refuses access
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned for unknown image references
	ErrNotFound = errors.New("not found")
)

// PersistenceError wraps any failure of the document store. The message of
// the underlying error is passed through unchanged.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// StorageError wraps a failure of image storage
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
