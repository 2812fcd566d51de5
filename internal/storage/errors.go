package storage

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("key not found")
	ErrCorrupt            = errors.New("stored value is corrupt")
	ErrUnsupportedVersion = errors.New("stored value has a newer schema version")
)

// StorageError represents a failure reading or writing the local store.
type StorageError struct {
	Key     string
	Op      string
	Message string
	Cause   error
}

func (e *StorageError) Unwrap() error {
	return e.Cause
}

func (e *StorageError) Error() string {
	prefix := "storage " + e.Op
	if e.Key != "" {
		prefix = fmt.Sprintf("storage %s %q", e.Op, e.Key)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}
