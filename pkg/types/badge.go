package types

import (
	"fmt"
	"time"
)

// BadgeDefinition is one achievement tier of the catalog. Name, Description
// and Icon are presentation fields; the engine only reads ID and
// RequiredTrips.
type BadgeDefinition struct {
	ID            string `json:"id" yaml:"id" mapstructure:"id"`
	Name          string `json:"name" yaml:"name" mapstructure:"name"`
	Description   string `json:"description,omitempty" yaml:"description,omitempty" mapstructure:"description"`
	Icon          string `json:"icon,omitempty" yaml:"icon,omitempty" mapstructure:"icon"`
	RequiredTrips int    `json:"required_trips" yaml:"required_trips" mapstructure:"required_trips"`
}

// Validate reports a malformed definition as ErrConfiguration.
func (d BadgeDefinition) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("%w: badge id must not be empty", ErrConfiguration)
	case d.Name == "":
		return fmt.Errorf("%w: badge %q has no name", ErrConfiguration, d.ID)
	case d.RequiredTrips < 0:
		return fmt.Errorf("%w: badge %q requires %d trips", ErrConfiguration, d.ID, d.RequiredTrips)
	}
	return nil
}

// BadgeState is the derived status of one badge for a given trip count.
// Remaining is zero whenever Unlocked is true. UnlockedAt is only set when
// the state comes from a session that recorded the first unlock.
type BadgeState struct {
	Badge      BadgeDefinition `json:"badge"`
	Unlocked   bool            `json:"unlocked"`
	Remaining  int             `json:"remaining"`
	UnlockedAt *time.Time      `json:"unlocked_at,omitempty"`
}

// ProgressSummary aggregates a set of badge states. Percent is in [0,100]
// and is 0 for an empty catalog.
type ProgressSummary struct {
	UnlockedCount int `json:"unlocked_count"`
	TotalCount    int `json:"total_count"`
	Percent       int `json:"percent"`
}

// Evaluation is the full result of evaluating a catalog against a trip
// count. Badges keeps catalog order.
type Evaluation struct {
	Trips   int             `json:"trips"`
	Badges  []BadgeState    `json:"badges"`
	Summary ProgressSummary `json:"summary"`
}

// UnlockedBadges returns the unlocked states in catalog order.
func (e Evaluation) UnlockedBadges() []BadgeState {
	return e.partition(true)
}

// LockedBadges returns the locked states in catalog order.
func (e Evaluation) LockedBadges() []BadgeState {
	return e.partition(false)
}

func (e Evaluation) partition(unlocked bool) []BadgeState {
	out := make([]BadgeState, 0, len(e.Badges))
	for _, s := range e.Badges {
		if s.Unlocked == unlocked {
			out = append(out, s)
		}
	}
	return out
}
