package scoreboarddb

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no archive is stored under a key.
var ErrNotFound = errors.New("archive not found")

// Store persists encoded scoreboard archives by key.
//
// Error semantics:
//   - ErrNotFound: nothing is stored under the key (Load, Delete)
//   - Other errors: infrastructure failures
type Store interface {
	// Load returns the archive bytes stored under key.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save stores data under key, replacing any previous archive.
	Save(ctx context.Context, key string, data []byte) error

	// List returns every stored key in ascending order.
	List(ctx context.Context) ([]string, error)

	// Delete removes the archive stored under key.
	Delete(ctx context.Context, key string) error
}
