// Package storage defines the persistence contract for the versioned
// session state. Implementations must be safe for concurrent use.
package storage

import (
	"context"
	"errors"

	"github.com/parleyhq/parley/internal/session"
)

// ErrNotFound indicates no state has been persisted yet.
var ErrNotFound = errors.New("storage: no persisted state")

// Store persists the whole session state blob. The blob carries its own
// schema version; migration happens in the session package on load.
type Store interface {
	// Load returns the persisted state, or ErrNotFound.
	Load(ctx context.Context) (session.State, error)

	// Save replaces the persisted state.
	Save(ctx context.Context, state session.State) error

	// Close releases the underlying resources.
	Close() error
}
