package progress

import (
	"fmt"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

// WatermarkPolicy decides what a session's watermark becomes after a
// reconciliation.
type WatermarkPolicy int

const (
	// WatermarkLatest stores the current unlocked count, even when it went
	// down. A later rise celebrates again only past the lowered mark.
	WatermarkLatest WatermarkPolicy = iota

	// WatermarkHighest stores the running maximum, so badges stay sticky:
	// a dip and a recovery never celebrate the same tier twice.
	WatermarkHighest
)

// String returns the policy name used in configuration.
func (p WatermarkPolicy) String() string {
	switch p {
	case WatermarkLatest:
		return "latest"
	case WatermarkHighest:
		return "highest"
	default:
		return fmt.Sprintf("WatermarkPolicy(%d)", int(p))
	}
}

// ParseWatermarkPolicy maps a configuration value to a policy. The empty
// string selects WatermarkLatest.
func ParseWatermarkPolicy(s string) (WatermarkPolicy, error) {
	switch s {
	case "", "latest":
		return WatermarkLatest, nil
	case "highest":
		return WatermarkHighest, nil
	default:
		return 0, fmt.Errorf("%w: unknown watermark policy %q", types.ErrConfiguration, s)
	}
}

// Reconcile compares newUnlockedCount with the session's watermark. It
// reports a celebration iff the count rose, and returns the state with the
// watermark set to newUnlockedCount. Calling it again with the same count
// never celebrates.
func Reconcile(state types.TrackerState, newUnlockedCount int) (bool, types.TrackerState, error) {
	return WatermarkLatest.Reconcile(state, newUnlockedCount)
}

// Reconcile applies the policy to state. See the package-level Reconcile.
func (p WatermarkPolicy) Reconcile(state types.TrackerState, newUnlockedCount int) (bool, types.TrackerState, error) {
	if newUnlockedCount < 0 {
		return false, state, fmt.Errorf("%w: unlocked count %d is negative", types.ErrInvalidInput, newUnlockedCount)
	}

	previous := state.LastUnlockedCount
	celebrate := newUnlockedCount > previous

	next := state
	next.LastUnlockedCount = newUnlockedCount
	if p == WatermarkHighest && previous > newUnlockedCount {
		next.LastUnlockedCount = previous
	}
	return celebrate, next, nil
}

// newlyUnlocked returns the badges at threshold ranks [from, to). Because a
// badge with a lower threshold always unlocks no later than one with a
// higher threshold, the unlocked set is a prefix of this ordering.
func newlyUnlocked(c *types.Catalog, from, to int) []types.BadgeDefinition {
	ordered := c.ByThreshold()
	if from < 0 {
		from = 0
	}
	if to > len(ordered) {
		to = len(ordered)
	}
	if from >= to {
		return nil
	}
	return ordered[from:to]
}
