package market

import (
	"context"
	"time"
)

// ListingStore is the persistence boundary for listings, transactions and
// expiry bookkeeping. The pgx implementation lives in repo.go; tests swap in
// an in-memory fake.
type ListingStore interface {
	CreateListing(ctx context.Context, l *Listing) (string, error)
	GetListing(ctx context.Context, id string) (*Listing, error)
	// ActiveListings returns active listings for a guild/side/zone. An empty
	// item returns the whole zone; callers apply wildcard semantics.
	ActiveListings(ctx context.Context, guildID string, side Side, zone string) ([]Listing, error)
	DeactivateListing(ctx context.Context, id, actingUser string) (bool, error)
	ExtendListing(ctx context.Context, id string, days int) error
	RecordTransaction(ctx context.Context, t *Transaction) error

	ExpiredListings(ctx context.Context, now time.Time) ([]Listing, error)
	ExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Listing, error)
	MarkReminded(ctx context.Context, id string) error
}

// EventStore persists scheduled trade events and participant confirmations.
type EventStore interface {
	CreateEvent(ctx context.Context, ev *ScheduledEvent) error
	GetEvent(ctx context.Context, id string) (*ScheduledEvent, error)
	// EventByListing returns the most recent event for a listing, or nil.
	EventByListing(ctx context.Context, listingID string) (*ScheduledEvent, error)
	// DueEvents returns pending events whose trigger time has passed.
	DueEvents(ctx context.Context, now time.Time) ([]ScheduledEvent, error)
	// SetEventStatus transitions from -> to and reports whether this call won
	// the transition (false when another tick already moved it).
	SetEventStatus(ctx context.Context, id string, from, to EventStatus) (bool, error)

	AddParticipant(ctx context.Context, eventID, userID string) error
	Participants(ctx context.Context, eventID string) ([]string, error)
	RecordConfirmation(ctx context.Context, c *EventConfirmation) error
	Confirmations(ctx context.Context, eventID string) ([]EventConfirmation, error)

	SetPromptDue(ctx context.Context, eventID string, at time.Time) error
	// DuePrompts returns started events whose rating prompt is due and unsent.
	DuePrompts(ctx context.Context, now time.Time) ([]ScheduledEvent, error)
	MarkPromptsSent(ctx context.Context, eventID string) error
}

// RatingStore persists ratings, reputation summaries and guild moderation
// config.
type RatingStore interface {
	InsertRating(ctx context.Context, r *Rating) error
	ApprovedRatings(ctx context.Context, ratedID string) ([]Rating, error)
	UpsertReputation(ctx context.Context, s *ReputationSummary) error
	Reputation(ctx context.Context, userID string) (*ReputationSummary, error)
	TransactionStats(ctx context.Context, userID string) (*TransactionStats, error)
	GuildConfig(ctx context.Context, guildID string) (*GuildRatingConfig, error)
}

// Publisher hands outbound events to the notification pipeline. The kafka
// producer satisfies this; tests capture messages with a fake.
type Publisher interface {
	Publish(topic string, key, value []byte)
}
