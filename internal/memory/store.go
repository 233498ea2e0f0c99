// Package memory implements an in-process SessionStore. State lives for the
// lifetime of the process, which is the natural scope of a session for
// servers that embed the engine.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

var _ types.SessionStore = (*Store)(nil)

// Store keeps tracker states in a map keyed by session id.
type Store struct {
	mu       sync.RWMutex
	attached bool
	sessions map[string]types.TrackerState
}

// NewStore creates a detached store; call Attach before use.
func NewStore() *Store {
	return &Store{}
}

// Attach readies the store. The config must name the memory backend.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}
	if config.Backend != types.BackendMemory {
		return types.ErrBackendUnknown
	}
	s.sessions = make(map[string]types.TrackerState)
	s.attached = true
	return nil
}

// Detach drops every session. Idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attached = false
	s.sessions = nil
	return nil
}

// Load returns a copy of the state stored for id, or ErrSessionNotFound.
func (s *Store) Load(_ context.Context, id string) (types.TrackerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return types.TrackerState{}, types.ErrStoreDetached
	}
	if err := types.ValidateSessionID(id); err != nil {
		return types.TrackerState{}, err
	}
	st, ok := s.sessions[id]
	if !ok {
		return types.TrackerState{}, types.ErrSessionNotFound
	}
	return st.Clone(), nil
}

// Save stores a copy of state. An empty session id or a negative
// watermark is rejected.
func (s *Store) Save(_ context.Context, state types.TrackerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}
	if err := state.Validate(); err != nil {
		return err
	}
	s.sessions[state.SessionID] = state.Clone()
	return nil
}

// Delete removes the state stored for id.
func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return types.ErrStoreDetached
	}
	if _, ok := s.sessions[id]; !ok {
		return types.ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// List returns copies of all states ordered by session id.
func (s *Store) List(_ context.Context) ([]types.TrackerState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	out := make([]types.TrackerState, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, st.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}
