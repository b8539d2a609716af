package market

import "time"

// AllItems is the wildcard item name: a sell listing carrying it matches any
// buy request in the same zone.
const AllItems = "All Items"

// Listing is a standing offer to sell or buy an item in a zone. Listings are
// never hard-deleted; completion, expiry and removal flip Active off and set
// RemovedAt so the audit trail survives.
type Listing struct {
	ID          string
	GuildID     string
	OwnerID     string
	Side        Side
	Zone        string
	Subcategory string
	Item        string
	Qty         int
	Notes       string
	ScheduledAt *time.Time
	CreatedAt   time.Time
	ExpiresAt   time.Time
	RemovedAt   *time.Time
	Active      bool
	Reminded    bool
}

// Transaction is the append-only record of a completed or cancelled trade.
type Transaction struct {
	ID          string
	ListingID   *string
	GuildID     string
	SellerID    string
	BuyerID     string
	Item        string
	Zone        string
	Qty         int
	Status      TxStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Rating is a persisted peer rating. Low scores sit at RatingPending until an
// admin resolves them.
type Rating struct {
	ID        string
	GuildID   string
	RaterID   string
	RatedID   string
	Score     int
	Comment   string
	Status    RatingStatus
	AdminID   *string
	CreatedAt time.Time
}

// ReputationSummary is the derived aggregate over a user's approved ratings.
type ReputationSummary struct {
	UserID        string
	Average       float64
	Count         int
	ActivityScore float64
}

// TransactionStats feeds the composite trader score.
type TransactionStats struct {
	Total     int
	Completed int
}

// ScheduledEvent tracks a listing's future trade time through the poll loop.
type ScheduledEvent struct {
	ID              string
	ListingID       string
	TriggerAt       time.Time
	Status          EventStatus
	SellerConfirmed bool
	PromptDueAt     *time.Time
	PromptsSent     bool
	CreatedAt       time.Time
}

// EventConfirmation is one participant's answer to the post-trigger prompt.
// Unique per (event, user).
type EventConfirmation struct {
	EventID   string
	UserID    string
	Role      Role
	Confirmed bool
	CreatedAt time.Time
}

// GuildRatingConfig controls low-score moderation for one guild. An empty
// ReviewChannelID means no review channel is configured and low ratings post
// directly.
type GuildRatingConfig struct {
	GuildID         string
	ReviewChannelID string
	Threshold       int
	MinCommentLen   int
}

// PendingOrder is an in-flight two-party handshake. It lives only in the
// coordinator's in-memory table; a process restart drops it.
type PendingOrder struct {
	OrderID   string
	GuildID   string
	BuyerID   string
	SellerID  string
	Item      string
	Zone      string
	Qty       int
	Notes     string
	ListingID string
	Confirmed map[string]bool
	CreatedAt time.Time
}

// SubmittedRating is the resolved outcome of one rater's slot in a
// PendingRating.
type SubmittedRating struct {
	RatedID  string
	Score    int
	Comment  string
	Approved bool
	At       time.Time
}

// PendingRating is an open rating window for a completed order or a started
// scheduled event. Key is the order id or event id; Expected maps each rater
// to the party they rate. In-memory only, like PendingOrder.
type PendingRating struct {
	Key       string
	GuildID   string
	Item      string
	Zone      string
	EventID   string
	Expected  map[string]string
	Resolved  map[string]*SubmittedRating
	CreatedAt time.Time
}

// Open reports whether the rater still has an unresolved slot.
func (p *PendingRating) Open(raterID string) bool {
	if _, ok := p.Expected[raterID]; !ok {
		return false
	}
	_, done := p.Resolved[raterID]
	return !done
}

// Done reports whether every expected rater has been resolved.
func (p *PendingRating) Done() bool {
	return len(p.Resolved) == len(p.Expected)
}
