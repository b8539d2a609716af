package market

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listing(id, owner string, side Side, zone, item string, created time.Time) Listing {
	return Listing{
		ID:        id,
		GuildID:   "g1",
		OwnerID:   owner,
		Side:      side,
		Zone:      zone,
		Item:      item,
		Qty:       1,
		CreatedAt: created,
		ExpiresAt: created.AddDate(0, 0, 7),
	}
}

func TestFindMatchesOppositeSide(t *testing.T) {
	ctx := context.Background()
	store := newFakeListings()
	now := time.Now()
	store.add(listing("l1", "alice", SideSell, "sky", "Hope Torque", now))

	m := &Matcher{Store: store}

	got, err := m.FindMatches(ctx, "bob", "g1", SideBuy, "sky", "Hope Torque")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0].ID)

	// The owner's own request never matches their listing.
	got, err = m.FindMatches(ctx, "alice", "g1", SideBuy, "sky", "Hope Torque")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindMatchesCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := newFakeListings()
	store.add(listing("l1", "alice", SideSell, "sky", "hope torque", time.Now()))

	m := &Matcher{Store: store}
	got, err := m.FindMatches(ctx, "bob", "g1", SideBuy, "sky", "HOPE TORQUE")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindMatchesWildcard(t *testing.T) {
	ctx := context.Background()
	store := newFakeListings()
	store.add(listing("l1", "alice", SideSell, "sky", AllItems, time.Now()))

	m := &Matcher{Store: store}
	got, err := m.FindMatches(ctx, "bob", "g1", SideBuy, "sky", "anything at all")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestFindMatchesZoneAndSideScoping(t *testing.T) {
	ctx := context.Background()
	store := newFakeListings()
	now := time.Now()
	store.add(listing("wrong-zone", "alice", SideSell, "forest", "Hope Torque", now))
	store.add(listing("same-side", "carol", SideBuy, "sky", "Hope Torque", now))

	m := &Matcher{Store: store}
	got, err := m.FindMatches(ctx, "bob", "g1", SideBuy, "sky", "Hope Torque")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBestMatchOldestFirst(t *testing.T) {
	ctx := context.Background()
	store := newFakeListings()
	now := time.Now()
	store.add(listing("newer", "alice", SideSell, "sky", "Hope Torque", now))
	store.add(listing("older", "carol", SideSell, "sky", "Hope Torque", now.Add(-time.Hour)))

	m := &Matcher{Store: store}
	best, err := m.BestMatch(ctx, "bob", "g1", SideBuy, "sky", "Hope Torque")
	require.NoError(t, err)
	require.NotNil(t, best)
	assert.Equal(t, "older", best.ID)
}

func TestBestMatchEmptyIsNotAnError(t *testing.T) {
	m := &Matcher{Store: newFakeListings()}
	best, err := m.BestMatch(context.Background(), "bob", "g1", SideBuy, "sky", "Hope Torque")
	require.NoError(t, err)
	assert.Nil(t, best)
}
