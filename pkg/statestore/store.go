package statestore

import (
	"context"
	"errors"
	"time"
)

// Store persists opaque history state blobs by key.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save writes data under id, replacing any previous value. The entry
	// is invisible to Load once expiresAt has passed.
	Save(ctx context.Context, id string, data []byte, expiresAt time.Time) error

	// Load returns (nil, nil) when id is missing or expired.
	Load(ctx context.Context, id string) ([]byte, error)

	// Delete removes id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error

	// Touch moves the expiry of id without rewriting its data.
	Touch(ctx context.Context, id string, expiresAt time.Time) error

	// SaveAll writes several entries, atomically where the backend allows.
	SaveAll(ctx context.Context, entries map[string]Data) error

	Close() error
}

// Data is one stored blob with its expiry.
type Data struct {
	Data      []byte
	ExpiresAt time.Time
}

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("statestore: store is closed")

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
