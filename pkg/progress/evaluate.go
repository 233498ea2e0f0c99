package progress

import (
	"fmt"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

// Evaluate computes the state of every badge in defs for currentTrips.
// Each badge is judged only against its own threshold; defs need not be
// sorted. A negative trip count returns ErrInvalidInput and a repeated id
// returns ErrDuplicateBadgeID, in both cases with no partial result.
func Evaluate(defs []types.BadgeDefinition, currentTrips int) (types.Evaluation, error) {
	if currentTrips < 0 {
		return types.Evaluation{}, fmt.Errorf("%w: trip count %d is negative", types.ErrInvalidInput, currentTrips)
	}
	seen := make(map[string]struct{}, len(defs))
	for _, d := range defs {
		if _, dup := seen[d.ID]; dup {
			return types.Evaluation{}, fmt.Errorf("%w: %q", types.ErrDuplicateBadgeID, d.ID)
		}
		seen[d.ID] = struct{}{}
	}

	states := make([]types.BadgeState, len(defs))
	unlocked := 0
	for i, d := range defs {
		states[i] = badgeState(d, currentTrips)
		if states[i].Unlocked {
			unlocked++
		}
	}

	return types.Evaluation{
		Trips:  currentTrips,
		Badges: states,
		Summary: types.ProgressSummary{
			UnlockedCount: unlocked,
			TotalCount:    len(defs),
			Percent:       percent(unlocked, len(defs)),
		},
	}, nil
}

// EvaluateCatalog is Evaluate over a validated catalog.
func EvaluateCatalog(c *types.Catalog, currentTrips int) (types.Evaluation, error) {
	return Evaluate(c.Definitions(), currentTrips)
}

func badgeState(d types.BadgeDefinition, trips int) types.BadgeState {
	if trips >= d.RequiredTrips {
		return types.BadgeState{Badge: d, Unlocked: true}
	}
	return types.BadgeState{Badge: d, Remaining: d.RequiredTrips - trips}
}

// percent rounds unlocked/total*100 half up, and is 0 for an empty catalog.
func percent(unlocked, total int) int {
	if total == 0 {
		return 0
	}
	return (unlocked*200 + total) / (2 * total)
}
