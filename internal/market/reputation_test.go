package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approved(rated string, score int) Rating {
	return Rating{
		GuildID:   "g1",
		RaterID:   "someone",
		RatedID:   rated,
		Score:     score,
		Status:    RatingApproved,
		CreatedAt: time.Now(),
	}
}

func TestRecompute(t *testing.T) {
	ctx := context.Background()
	store := newFakeRatings()
	store.ratings = []Rating{
		approved("u1", 5),
		approved("u1", 4),
		approved("u1", 3),
		approved("other", 1),
		{RatedID: "u1", Score: 1, Status: RatingRejected}, // never counted
	}
	agg := &Aggregator{Store: store}

	s, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 4.0, s.Average, 1e-9)
}

func TestRecomputeIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newFakeRatings()
	store.ratings = []Rating{approved("u1", 5), approved("u1", 2)}
	agg := &Aggregator{Store: store}

	first, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)
	second, err := agg.Recompute(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, first.Average, second.Average)
}

func TestRecomputeNoRatings(t *testing.T) {
	agg := &Aggregator{Store: newFakeRatings()}
	s, err := agg.Recompute(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, s.Count)
	assert.Zero(t, s.Average)
}

func TestCompositeExperiencedPerfectTrader(t *testing.T) {
	// 20 five-star ratings, 100% completion, 25 transactions: the experience
	// modifier is 1.0 and the overall equals the raw weighted blend.
	scores := make([]int, 20)
	for i := range scores {
		scores[i] = 5
	}
	sum := ReputationSummary{UserID: "u1", Average: 5.0, Count: 20, ActivityScore: 50}
	tx := TransactionStats{Total: 25, Completed: 25}

	cs := Composite(sum, scores, tx)
	assert.InDelta(t, 100.0, cs.ReputationComponent, 1e-9)
	assert.InDelta(t, 100.0, cs.TransactionComponent, 1e-9)
	assert.InDelta(t, 100.0, cs.ActivityComponent, 1e-9)
	assert.InDelta(t, 100.0, cs.ConsistencyComponent, 1e-9)

	raw := 0.4*100 + 0.3*100 + 0.2*100 + 0.1*100
	assert.InDelta(t, raw, cs.Overall, 1e-9)
	assert.Equal(t, "platinum", cs.Tier)
	assert.Equal(t, "experienced", cs.ExperienceLevel)
}

func TestCompositeNewTraderFloor(t *testing.T) {
	// Brand-new trader: zero transactions floors the modifier at 0.7.
	sum := ReputationSummary{UserID: "u1", Average: 5.0, Count: 1, ActivityScore: 50}
	cs := Composite(sum, []int{5}, TransactionStats{})

	raw := 0.4*100 + 0.3*0 + 0.2*100 + 0.1*100
	assert.InDelta(t, raw*0.7, cs.Overall, 1e-9)
	assert.Equal(t, "new", cs.ExperienceLevel)
}

func TestCompositeModifierRisesLinearly(t *testing.T) {
	sum := ReputationSummary{Average: 5.0, Count: 10, ActivityScore: 50}
	scores := []int{5, 5, 5, 5, 5, 5, 5, 5, 5, 5}

	at10 := Composite(sum, scores, TransactionStats{Total: 10, Completed: 10})
	at20 := Composite(sum, scores, TransactionStats{Total: 20, Completed: 20})
	at40 := Composite(sum, scores, TransactionStats{Total: 40, Completed: 40})

	// Halfway to 20 transactions sits halfway between the 0.7 floor and 1.0.
	assert.InDelta(t, at20.Overall*0.85, at10.Overall, 1e-9)
	// Past 20 the modifier is capped.
	assert.InDelta(t, at20.Overall, at40.Overall, 1e-9)
}

func TestConsistencyPenalizesSpread(t *testing.T) {
	steady := Composite(ReputationSummary{Average: 3, Count: 4}, []int{3, 3, 3, 3}, TransactionStats{Total: 25, Completed: 25})
	volatile := Composite(ReputationSummary{Average: 3, Count: 4}, []int{1, 5, 1, 5}, TransactionStats{Total: 25, Completed: 25})

	assert.InDelta(t, 100.0, steady.ConsistencyComponent, 1e-9)
	assert.InDelta(t, 0.0, volatile.ConsistencyComponent, 1e-9)
	assert.Greater(t, steady.Overall, volatile.Overall)
}

func TestTierRequiresTrackRecord(t *testing.T) {
	// A high score with a thin history drops out of the top tiers.
	sum := ReputationSummary{Average: 5.0, Count: 2, ActivityScore: 50}
	cs := Composite(sum, []int{5, 5}, TransactionStats{Total: 25, Completed: 25})
	assert.GreaterOrEqual(t, cs.Overall, 90.0)
	assert.Equal(t, "silver", cs.Tier)
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{95, "platinum"},
		{80, "gold"},
		{65, "silver"},
		{45, "bronze"},
		{10, "unranked"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tier(tc.score, 15, 15), "score %v", tc.score)
	}
}
