package market

import (
	"context"
	"fmt"
)

// Aggregator recomputes reputation summaries and derives the composite trader
// score. Recompute runs synchronously after every accepted rating so reads
// always reflect the latest one.
type Aggregator struct {
	Store RatingStore
}

// Recompute reads all approved ratings targeting userID and rewrites the
// summary row. Idempotent: with no new ratings, repeated calls write the same
// avg/count.
func (a *Aggregator) Recompute(ctx context.Context, userID string) (*ReputationSummary, error) {
	ratings, err := a.Store.ApprovedRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("approved ratings: %w", err)
	}

	prev, err := a.Store.Reputation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reputation summary: %w", err)
	}

	s := &ReputationSummary{UserID: userID}
	if prev != nil {
		s.ActivityScore = prev.ActivityScore
	}
	for _, r := range ratings {
		s.Average += float64(r.Score)
	}
	s.Count = len(ratings)
	if s.Count > 0 {
		s.Average /= float64(s.Count)
	}

	if err := a.Store.UpsertReputation(ctx, s); err != nil {
		return nil, fmt.Errorf("upsert reputation: %w", err)
	}
	return s, nil
}

// CompositeScore is the weighted trader score and its components, all on a
// 0-100 scale.
type CompositeScore struct {
	Overall              float64 `json:"overall"`
	ReputationComponent  float64 `json:"reputation_component"`
	TransactionComponent float64 `json:"transaction_component"`
	ActivityComponent    float64 `json:"activity_component"`
	ConsistencyComponent float64 `json:"consistency_component"`
	Tier                 string  `json:"tier"`
	ExperienceLevel      string  `json:"experience_level"`
}

// activityCap normalizes raw activity: 50+ tracked actions count as fully
// active.
const activityCap = 50.0

// Composite blends reputation (40%), transaction completion (30%), activity
// (20%) and rating consistency (10%), then dampens the result for
// low-transaction users: brand-new traders are floored at 70% of the raw
// blend, rising linearly to 100% at 20 transactions.
func Composite(sum ReputationSummary, scores []int, tx TransactionStats) CompositeScore {
	cs := CompositeScore{
		ReputationComponent: sum.Average / 5 * 100,
		ActivityComponent:   clamp01(sum.ActivityScore/activityCap) * 100,
	}
	if tx.Total > 0 {
		cs.TransactionComponent = float64(tx.Completed) / float64(tx.Total) * 100
	}
	cs.ConsistencyComponent = consistency(scores, sum.Average) * 100

	raw := 0.4*cs.ReputationComponent +
		0.3*cs.TransactionComponent +
		0.2*cs.ActivityComponent +
		0.1*cs.ConsistencyComponent

	modifier := 0.7 + 0.3*clamp01(float64(tx.Total)/20)
	cs.Overall = raw * modifier

	cs.Tier = tier(cs.Overall, sum.Count, tx.Total)
	cs.ExperienceLevel = experienceLevel(tx.Total)
	return cs
}

// consistency is inverse rating variance: identical scores give 1, the widest
// possible spread (variance 4, all 1s and 5s) gives 0.
func consistency(scores []int, mean float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var v float64
	for _, s := range scores {
		d := float64(s) - mean
		v += d * d
	}
	v /= float64(len(scores))
	return clamp01(1 - v/4)
}

// tier thresholds apply to the final (dampened) score; the top two tiers also
// require a track record.
func tier(score float64, ratingCount, txCount int) string {
	proven := ratingCount >= 10 && txCount >= 10
	switch {
	case score >= 90 && proven:
		return "platinum"
	case score >= 75 && proven:
		return "gold"
	case score >= 90, score >= 75, score >= 60:
		return "silver"
	case score >= 40:
		return "bronze"
	default:
		return "unranked"
	}
}

func experienceLevel(txCount int) string {
	switch {
	case txCount < 5:
		return "new"
	case txCount < 20:
		return "intermediate"
	case txCount < 50:
		return "experienced"
	default:
		return "veteran"
	}
}

// CompositeFor assembles the composite score from stored state.
func (a *Aggregator) CompositeFor(ctx context.Context, userID string) (*CompositeScore, error) {
	sum, err := a.Store.Reputation(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("reputation summary: %w", err)
	}
	if sum == nil {
		sum = &ReputationSummary{UserID: userID}
	}
	ratings, err := a.Store.ApprovedRatings(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("approved ratings: %w", err)
	}
	scores := make([]int, 0, len(ratings))
	for _, r := range ratings {
		scores = append(scores, r.Score)
	}
	tx, err := a.Store.TransactionStats(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("transaction stats: %w", err)
	}
	if tx == nil {
		tx = &TransactionStats{}
	}
	cs := Composite(*sum, scores, *tx)
	return &cs, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
