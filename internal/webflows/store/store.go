package store

import (
	"context"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("store: not found")

// Store is a namespaced key-value store. Drivers (memory, sqlite) implement
// it and Encrypted wraps any of them. Values are opaque bytes; callers decide
// the encoding.
//
// Writes are last-writer-wins. Nothing here is transactional across keys,
// since every record the SDK keeps is self-contained.
type Store interface {
	// Get returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, namespace, key string) ([]byte, error)

	// Put creates or replaces a value.
	Put(ctx context.Context, namespace, key string, value []byte) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, namespace, key string) error

	// Keys lists the keys in a namespace, in no particular order.
	Keys(ctx context.Context, namespace string) ([]string, error)

	// Close releases any underlying resources.
	Close() error
}

// StorageError reports a persistence failure to SDK callers. Op names the
// failing operation, e.g. "read session".
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err, leaving an existing StorageError alone.
func NewStorageError(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
