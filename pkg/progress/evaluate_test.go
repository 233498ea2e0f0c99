package progress

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/milestones/pkg/types"
)

var abcCatalog = []types.BadgeDefinition{
	{ID: "a", Name: "A", RequiredTrips: 1},
	{ID: "b", Name: "B", RequiredTrips: 3},
	{ID: "c", Name: "C", RequiredTrips: 5},
}

func TestEvaluate_Scenario(t *testing.T) {
	got, err := Evaluate(abcCatalog, 4)
	require.NoError(t, err)

	want := types.Evaluation{
		Trips: 4,
		Badges: []types.BadgeState{
			{Badge: abcCatalog[0], Unlocked: true},
			{Badge: abcCatalog[1], Unlocked: true},
			{Badge: abcCatalog[2], Unlocked: false, Remaining: 1},
		},
		Summary: types.ProgressSummary{UnlockedCount: 2, TotalCount: 3, Percent: 67},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Evaluate mismatch (-want +got):\n%s", diff)
	}
}

func TestEvaluate_ThresholdExactness(t *testing.T) {
	for _, k := range []int{1, 3, 5, 12} {
		defs := []types.BadgeDefinition{{ID: "k", Name: "K", RequiredTrips: k}}

		below, err := Evaluate(defs, k-1)
		require.NoError(t, err)
		assert.False(t, below.Badges[0].Unlocked, "k=%d", k)
		assert.Equal(t, 1, below.Badges[0].Remaining, "k=%d", k)

		at, err := Evaluate(defs, k)
		require.NoError(t, err)
		assert.True(t, at.Badges[0].Unlocked, "k=%d", k)
		assert.Equal(t, 0, at.Badges[0].Remaining, "k=%d", k)
	}
}

func TestEvaluate_ZeroThresholdAlwaysUnlocked(t *testing.T) {
	got, err := Evaluate([]types.BadgeDefinition{{ID: "z", Name: "Z"}}, 0)
	require.NoError(t, err)
	assert.True(t, got.Badges[0].Unlocked)
	assert.Equal(t, 100, got.Summary.Percent)
}

func TestEvaluate_EmptyCatalog(t *testing.T) {
	for _, trips := range []int{0, 1, 1000} {
		got, err := Evaluate(nil, trips)
		require.NoError(t, err)
		assert.Empty(t, got.Badges)
		assert.Equal(t, types.ProgressSummary{}, got.Summary)
	}
}

func TestEvaluate_RejectsNegativeTrips(t *testing.T) {
	got, err := Evaluate(abcCatalog, -1)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Nil(t, got.Badges)
}

func TestEvaluate_RejectsDuplicateIDs(t *testing.T) {
	defs := append([]types.BadgeDefinition{}, abcCatalog...)
	defs = append(defs, types.BadgeDefinition{ID: "b", Name: "B2", RequiredTrips: 9})

	got, err := Evaluate(defs, 4)
	assert.ErrorIs(t, err, types.ErrDuplicateBadgeID)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Nil(t, got.Badges)
}

func TestEvaluate_OrderIndependent(t *testing.T) {
	shuffled := []types.BadgeDefinition{abcCatalog[2], abcCatalog[0], abcCatalog[1]}
	got, err := Evaluate(shuffled, 3)
	require.NoError(t, err)

	assert.Equal(t, "c", got.Badges[0].Badge.ID, "catalog order is kept")
	assert.False(t, got.Badges[0].Unlocked)
	assert.Equal(t, 2, got.Badges[0].Remaining)
	assert.True(t, got.Badges[1].Unlocked)
	assert.True(t, got.Badges[2].Unlocked)
	assert.Equal(t, 2, got.Summary.UnlockedCount)
}

func TestEvaluate_Monotonic(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := rng.Intn(8)
		defs := make([]types.BadgeDefinition, n)
		for i := range defs {
			defs[i] = types.BadgeDefinition{
				ID:            string(rune('a' + i)),
				Name:          "badge",
				RequiredTrips: rng.Intn(15),
			}
		}

		prev := -1
		for trips := 0; trips <= 20; trips++ {
			got, err := Evaluate(defs, trips)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, got.Summary.UnlockedCount, prev, "round %d trips %d", round, trips)
			assert.LessOrEqual(t, got.Summary.UnlockedCount, got.Summary.TotalCount)
			assert.GreaterOrEqual(t, got.Summary.Percent, 0)
			assert.LessOrEqual(t, got.Summary.Percent, 100)
			prev = got.Summary.UnlockedCount
		}
	}
}

func TestEvaluate_Concurrent(t *testing.T) {
	want, err := Evaluate(abcCatalog, 4)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]types.Evaluation, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Evaluate(abcCatalog, 4)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("concurrent Evaluate differs (-want +got):\n%s", diff)
		}
	}
}

func TestEvaluateCatalog_Default(t *testing.T) {
	got, err := EvaluateCatalog(types.DefaultCatalog(), 5)
	require.NoError(t, err)
	assert.Equal(t, types.ProgressSummary{UnlockedCount: 3, TotalCount: 5, Percent: 60}, got.Summary)

	locked := got.LockedBadges()
	require.Len(t, locked, 2)
	assert.Equal(t, "world_trav", locked[0].Badge.ID)
	assert.Equal(t, 3, locked[0].Remaining)
	assert.Equal(t, 7, locked[1].Remaining)
}

func TestPercent(t *testing.T) {
	tests := []struct {
		unlocked, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 3, 33},
		{2, 3, 67},
		{3, 3, 100},
		{1, 2, 50},
		{1, 8, 13},
		{1, 200, 1},
		{1, 201, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, percent(tt.unlocked, tt.total), "%d/%d", tt.unlocked, tt.total)
	}
}
