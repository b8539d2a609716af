package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ConfirmResult is the outcome of one party's confirmation.
type ConfirmResult int

const (
	StillPending ConfirmResult = iota
	Completed
)

// Coordinator owns the in-memory pending-order and pending-rating tables and
// drives the propose -> confirm/decline -> complete handshake. Pending state
// is process memory only: a restart drops in-flight proposals and open rating
// windows. All table mutation goes through mu, so two parties confirming the
// same order near-simultaneously yield exactly one completion.
type Coordinator struct {
	listings ListingStore
	events   EventStore
	matcher  *Matcher
	pub      Publisher
	log      *zap.Logger
	service  string
	now      func() time.Time

	mu      sync.Mutex
	orders  map[string]*PendingOrder
	ratings map[string]*PendingRating
}

func NewCoordinator(listings ListingStore, events EventStore, pub Publisher, log *zap.Logger, service string) *Coordinator {
	return &Coordinator{
		listings: listings,
		events:   events,
		matcher:  &Matcher{Store: listings},
		pub:      pub,
		log:      log,
		service:  service,
		now:      time.Now,
		orders:   map[string]*PendingOrder{},
		ratings:  map[string]*PendingRating{},
	}
}

// CreateListing stores a new listing, opens a scheduled event when a trade
// time is set, and refreshes the zone view.
func (c *Coordinator) CreateListing(ctx context.Context, l *Listing) (string, error) {
	id, err := c.listings.CreateListing(ctx, l)
	if err != nil {
		return "", fmt.Errorf("create listing: %w", err)
	}
	if l.ScheduledAt != nil {
		ev := &ScheduledEvent{
			ID:        uuid.NewString(),
			ListingID: id,
			TriggerAt: *l.ScheduledAt,
			Status:    EventPending,
			CreatedAt: c.now(),
		}
		if err := c.events.CreateEvent(ctx, ev); err != nil {
			// Listing stays valid as an ad-hoc offer; only the timed trigger
			// is lost.
			c.log.Error("create scheduled event", zap.String("listing", id), zap.Error(err))
		}
	}
	refreshView(c.pub, c.service, l.GuildID, l.Zone, l.Side)
	return id, nil
}

// RequestMatch looks for the oldest opposite-side listing and, if found,
// proposes an order to both parties. Returns whether a match was found.
func (c *Coordinator) RequestMatch(ctx context.Context, userID, guildID string, side Side, zone, item string) (bool, error) {
	best, err := c.matcher.BestMatch(ctx, userID, guildID, side, zone, item)
	if err != nil {
		return false, fmt.Errorf("find matches: %w", err)
	}
	if best == nil {
		return false, nil
	}
	if best.ScheduledAt != nil {
		queued, err := c.queueForEvent(ctx, userID, best)
		if err != nil {
			return false, err
		}
		if queued {
			return true, nil
		}
		// Event gone or already triggered: treat it as a plain listing.
	}
	// A wildcard listing trades the item the requester asked for.
	tradeItem := best.Item
	if itemMatches(best.Item, AllItems) && item != "" {
		tradeItem = item
	}
	if _, err := c.Propose(ctx, guildID, userID, best.OwnerID, *best, side, tradeItem); err != nil {
		return false, err
	}
	return true, nil
}

// queueForEvent adds the requester to a scheduled listing's participant queue
// so the trade-time fan-out reaches them. Reports false when the listing's
// event is gone or no longer pending.
func (c *Coordinator) queueForEvent(ctx context.Context, userID string, l *Listing) (bool, error) {
	ev, err := c.events.EventByListing(ctx, l.ID)
	if err != nil {
		return false, fmt.Errorf("event for listing %s: %w", l.ID, err)
	}
	if ev == nil || ev.Status != EventPending {
		return false, nil
	}
	if err := c.events.AddParticipant(ctx, ev.ID, userID); err != nil {
		return false, fmt.Errorf("queue participant: %w", err)
	}
	c.log.Info("participant queued",
		zap.String("event", ev.ID), zap.String("listing", l.ID), zap.String("user", userID))

	when := ev.TriggerAt.Format("Mon Jan 2 15:04 MST")
	notifyUser(c.pub, c.service, ev.ID, userID,
		fmt.Sprintf("You are queued for the scheduled trade: %dx %s in %s at %s. You'll be pinged when it starts.", l.Qty, l.Item, l.Zone, when))
	notifyUser(c.pub, c.service, ev.ID, l.OwnerID,
		fmt.Sprintf("%s joined the queue for your scheduled %s trade in %s.", userID, l.Item, l.Zone))
	return true, nil
}

// Propose creates a pending order between the requester and the matched
// listing's owner and prompts both parties to confirm or decline. Delivery
// failures are the notifier's problem; the order stays pending regardless.
func (c *Coordinator) Propose(ctx context.Context, guildID, requester, matched string, listing Listing, requesterSide Side, item string) (string, error) {
	buyer, seller := requester, matched
	if requesterSide == SideSell {
		buyer, seller = matched, requester
	}

	o := &PendingOrder{
		OrderID:   uuid.NewString(),
		GuildID:   guildID,
		BuyerID:   buyer,
		SellerID:  seller,
		Item:      item,
		Zone:      listing.Zone,
		Qty:       listing.Qty,
		Notes:     listing.Notes,
		ListingID: listing.ID,
		Confirmed: map[string]bool{},
		CreatedAt: c.now(),
	}

	c.mu.Lock()
	c.orders[o.OrderID] = o
	c.mu.Unlock()

	c.log.Info("order proposed",
		zap.String("order", o.OrderID),
		zap.String("buyer", buyer),
		zap.String("seller", seller),
		zap.String("item", item),
		zap.String("zone", o.Zone))

	msg := fmt.Sprintf("Trade proposed: %dx %s in %s (order %s). Confirm or decline.", o.Qty, o.Item, o.Zone, o.OrderID)
	notifyUser(c.pub, c.service, o.OrderID, buyer, msg, "confirm", "decline")
	notifyUser(c.pub, c.service, o.OrderID, seller, msg, "confirm", "decline")
	return o.OrderID, nil
}

// Confirm records one party's confirmation. When both parties have confirmed
// it completes the order: the pending entry is dropped, the source listing is
// deactivated, a transaction is recorded and a rating window opens. Store
// failures after the in-memory transition are logged, not rolled back.
func (c *Coordinator) Confirm(ctx context.Context, orderID, userID string) (ConfirmResult, error) {
	c.mu.Lock()
	o, ok := c.orders[orderID]
	if !ok {
		c.mu.Unlock()
		return StillPending, ErrUnknownOrder
	}
	if userID != o.BuyerID && userID != o.SellerID {
		c.mu.Unlock()
		return StillPending, ErrNotAParty
	}
	o.Confirmed[userID] = true
	complete := o.Confirmed[o.BuyerID] && o.Confirmed[o.SellerID]
	if complete {
		delete(c.orders, orderID)
		c.ratings[orderID] = &PendingRating{
			Key:     orderID,
			GuildID: o.GuildID,
			Item:    o.Item,
			Zone:    o.Zone,
			Expected: map[string]string{
				o.BuyerID:  o.SellerID,
				o.SellerID: o.BuyerID,
			},
			Resolved:  map[string]*SubmittedRating{},
			CreatedAt: c.now(),
		}
	}
	c.mu.Unlock()

	if !complete {
		c.log.Info("order confirmation recorded", zap.String("order", orderID), zap.String("user", userID))
		return StillPending, nil
	}

	c.finalize(ctx, o)
	return Completed, nil
}

func (c *Coordinator) finalize(ctx context.Context, o *PendingOrder) {
	now := c.now()

	if ok, err := c.listings.DeactivateListing(ctx, o.ListingID, o.SellerID); err != nil || !ok {
		c.log.Error("deactivate listing on completion",
			zap.String("order", o.OrderID), zap.String("listing", o.ListingID), zap.Error(err))
	}

	listingID := o.ListingID
	tx := &Transaction{
		ID:          uuid.NewString(),
		ListingID:   &listingID,
		GuildID:     o.GuildID,
		SellerID:    o.SellerID,
		BuyerID:     o.BuyerID,
		Item:        o.Item,
		Zone:        o.Zone,
		Qty:         o.Qty,
		Status:      TxCompleted,
		CreatedAt:   now,
		CompletedAt: &now,
	}
	if err := c.listings.RecordTransaction(ctx, tx); err != nil {
		c.log.Error("record transaction", zap.String("order", o.OrderID), zap.Error(err))
	}

	c.log.Info("order completed", zap.String("order", o.OrderID))

	done := fmt.Sprintf("Trade complete: %dx %s in %s. Rate your trade partner (1-5).", o.Qty, o.Item, o.Zone)
	notifyUser(c.pub, c.service, o.OrderID, o.BuyerID, done, "1", "2", "3", "4", "5")
	notifyUser(c.pub, c.service, o.OrderID, o.SellerID, done, "1", "2", "3", "4", "5")
	refreshView(c.pub, c.service, o.GuildID, o.Zone, SideSell)
}

// Decline cancels a pending order and tells both parties why. Declining an
// order that no longer exists is a logged no-op.
func (c *Coordinator) Decline(ctx context.Context, orderID, userID, reason string) error {
	c.mu.Lock()
	o, ok := c.orders[orderID]
	if ok && userID != o.BuyerID && userID != o.SellerID {
		c.mu.Unlock()
		return ErrNotAParty
	}
	if ok {
		delete(c.orders, orderID)
	}
	c.mu.Unlock()

	if !ok {
		c.log.Info("decline for missing order ignored", zap.String("order", orderID), zap.String("user", userID))
		return nil
	}

	c.log.Info("order declined", zap.String("order", orderID), zap.String("by", userID), zap.String("reason", reason))
	msg := fmt.Sprintf("Trade cancelled: %dx %s in %s. Reason: %s", o.Qty, o.Item, o.Zone, reason)
	notifyUser(c.pub, c.service, orderID, o.BuyerID, msg)
	notifyUser(c.pub, c.service, orderID, o.SellerID, msg)
	return nil
}

// PendingOrderCount is used by health reporting.
func (c *Coordinator) PendingOrderCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.orders)
}

// OpenRating opens a rating window keyed by an order or event id. The
// scheduler uses it for scheduled trades; order completion opens its own
// window inline.
func (c *Coordinator) OpenRating(key, guildID, item, zone, eventID string, expected map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.ratings[key]; exists {
		return
	}
	c.ratings[key] = &PendingRating{
		Key:       key,
		GuildID:   guildID,
		Item:      item,
		Zone:      zone,
		EventID:   eventID,
		Expected:  expected,
		Resolved:  map[string]*SubmittedRating{},
		CreatedAt: c.now(),
	}
}

// RatingWindow returns a snapshot of the open window for key, or nil.
func (c *Coordinator) RatingWindow(key string) *PendingRating {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.ratings[key]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

// ResolveRatingSlot closes one rater's slot. When the last slot closes the
// window is removed and the (possibly empty) EventID plus the full record are
// returned so the caller can finish event bookkeeping.
func (c *Coordinator) ResolveRatingSlot(key, raterID string, sub *SubmittedRating) (done bool, rec *PendingRating, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.ratings[key]
	if !ok {
		return false, nil, ErrNoRatingWindow
	}
	if _, expected := p.Expected[raterID]; !expected {
		return false, nil, ErrNotAParty
	}
	if _, dup := p.Resolved[raterID]; dup {
		return false, nil, ErrDuplicateRating
	}
	p.Resolved[raterID] = sub
	if !p.Done() {
		return false, p, nil
	}
	delete(c.ratings, key)
	return true, p, nil
}
