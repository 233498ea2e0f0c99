package types

import (
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// TrackerState is the per-session watermark: the unlocked count last
// observed and acknowledged for that session. A session without stored
// state behaves as LastUnlockedCount == 0.
//
// UnlockedAt records, per badge id, when the session first saw the badge
// unlocked. Stamps are never removed, even if the trip count later drops.
type TrackerState struct {
	SessionID         string               `json:"session_id"`
	LastUnlockedCount int                  `json:"last_unlocked_count"`
	UnlockedAt        map[string]time.Time `json:"unlocked_at,omitempty"`
	UpdatedAt         time.Time            `json:"updated_at"`
}

// Validate checks a state before it is stored: the session id must be set
// and the watermark must not be negative.
func (s TrackerState) Validate() error {
	if err := ValidateSessionID(s.SessionID); err != nil {
		return err
	}
	if s.LastUnlockedCount < 0 {
		return fmt.Errorf("%w: unlocked count %d is negative", ErrInvalidInput, s.LastUnlockedCount)
	}
	return nil
}

// Clone returns a copy of s that shares no map with it.
func (s TrackerState) Clone() TrackerState {
	s.UnlockedAt = maps.Clone(s.UnlockedAt)
	return s
}

// NewSessionID returns a fresh UUID v7 session identifier.
func NewSessionID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}

// ValidateSessionID returns ErrInvalidSessionID for an empty id.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrInvalidSessionID
	}
	return nil
}
