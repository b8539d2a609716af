package market

import (
	"context"
	"sort"
	"strings"
)

// Matcher finds opposite-side candidates for an incoming buy/sell request.
type Matcher struct {
	Store ListingStore
}

// FindMatches returns active opposite-side listings in the same guild and
// zone whose item matches the request (case-insensitive, or the AllItems
// wildcard), excluding the requester's own listings, oldest first.
func (m *Matcher) FindMatches(ctx context.Context, requesterID, guildID string, side Side, zone, item string) ([]Listing, error) {
	candidates, err := m.Store.ActiveListings(ctx, guildID, side.Opposite(), zone)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(candidates))
	for _, l := range candidates {
		if l.OwnerID == requesterID {
			continue
		}
		if !itemMatches(l.Item, item) {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// BestMatch applies the single-candidate policy: only the oldest listing is
// proposed per request, the rest stay on the board. Returns nil when nothing
// matches.
func (m *Matcher) BestMatch(ctx context.Context, requesterID, guildID string, side Side, zone, item string) (*Listing, error) {
	all, err := m.FindMatches(ctx, requesterID, guildID, side, zone, item)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, nil
	}
	return &all[0], nil
}

func itemMatches(listingItem, requested string) bool {
	return strings.EqualFold(listingItem, requested) || strings.EqualFold(listingItem, AllItems)
}
