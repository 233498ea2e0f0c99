package types

import "context"

// SessionStore persists tracker watermarks keyed by session id. Callers
// attach to a backend, load and save states, and detach when done.
// Implementations are safe for concurrent use; serializing the
// read-modify-write of a single session is the caller's job.
type SessionStore interface {
	// Attach connects the store to the backend described by config.
	// Returns ErrAlreadyAttached if called while attached.
	Attach(config Config) error

	// Detach releases backend resources. Idempotent. After Detach, other
	// operations return ErrStoreDetached.
	Detach() error

	// Load returns the stored state for id, or ErrSessionNotFound.
	Load(ctx context.Context, id string) (TrackerState, error)

	// Save creates or replaces the state for state.SessionID.
	Save(ctx context.Context, state TrackerState) error

	// Delete removes the state for id. Returns ErrSessionNotFound if absent.
	Delete(ctx context.Context, id string) error

	// List returns every stored state ordered by session id.
	List(ctx context.Context) ([]TrackerState, error)
}
