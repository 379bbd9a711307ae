package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("storage closed")

// Storage defines the interface for cached response payload backends.
// Implementations: memory (default, testing), badger (in-memory LSM)
type Storage interface {
	// Get returns the payload stored under key and whether it exists
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores payload under key, replacing any previous value
	Put(ctx context.Context, key string, payload []byte) error

	// Delete removes key. Deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// Stats provides storage usage info
type Stats struct {
	// Number of stored payloads
	Entries uint64 `json:"entries"`

	// Sum of payload sizes in bytes
	SizeBytes uint64 `json:"size_bytes"`

	// Backend name ("memory" or "badger")
	Backend string `json:"backend"`
}
