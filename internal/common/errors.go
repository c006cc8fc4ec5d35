// Package common holds the error taxonomy and logging setup shared by the service.
package common

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means a reconciliation file, entry or entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrIndexOutOfRange means the caller addressed an entry past the end of the file.
	// Usually the file changed between search and match; the caller should search again.
	ErrIndexOutOfRange = errors.New("entry index out of range")
	// ErrConflict means the file was saved by someone else since it was loaded.
	ErrConflict = errors.New("reconciliation file was modified concurrently")
	// ErrAlreadyMatched means the entry is already linked to an entity.
	ErrAlreadyMatched = errors.New("entry already matched")
	// ErrNotMatched means a release was requested on an entry that holds no match.
	ErrNotMatched = errors.New("entry is not matched")
	// ErrFileClosed means the file is closed and therefore read-only.
	ErrFileClosed = errors.New("reconciliation file is closed")
	// ErrInvalidLink means the entity link is incomplete or names an unknown kind.
	ErrInvalidLink = errors.New("invalid entity link")
	// ErrStorage is matched by every *StorageError.
	ErrStorage = errors.New("storage error")
)

// StorageError wraps a backend failure on read or write.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrStorage) hold for any StorageError.
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// NewStorageError wraps err unless it is nil or already carries a taxonomy sentinel.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
