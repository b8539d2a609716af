package market

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Scheduler is the single poll loop behind timed trades. Each tick runs the
// trigger, reminder, expiry and rating-prompt checks in sequence; ticks never
// overlap because the work runs inline in the loop body and ticker fires are
// dropped while it is busy. A store failure aborts only the check that hit
// it; the next tick retries by virtue of the cadence.
type Scheduler struct {
	listings ListingStore
	events   EventStore
	coord    *Coordinator
	pub      Publisher
	log      *zap.Logger
	service  string

	interval    time.Duration
	lookahead   time.Duration
	promptDelay time.Duration
	now         func() time.Time

	done chan struct{}
}

func NewScheduler(listings ListingStore, events EventStore, coord *Coordinator, pub Publisher, log *zap.Logger, service string, interval, lookahead, promptDelay time.Duration) *Scheduler {
	return &Scheduler{
		listings:    listings,
		events:      events,
		coord:       coord,
		pub:         pub,
		log:         log,
		service:     service,
		interval:    interval,
		lookahead:   lookahead,
		promptDelay: promptDelay,
		now:         time.Now,
		done:        make(chan struct{}),
	}
}

// Start runs the poll loop until ctx is cancelled. An in-flight tick finishes
// before the loop exits.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		defer close(s.done)
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Tick(ctx)
			}
		}
	}()
}

// WaitClosed blocks until the loop goroutine has exited.
func (s *Scheduler) WaitClosed() { <-s.done }

// Tick runs one full poll iteration. Exported so tests and the bot's startup
// catch-up can drive it directly.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()
	s.triggerCheck(ctx, now)
	s.reminderCheck(ctx, now)
	s.expiryCheck(ctx, now)
	s.promptCheck(ctx, now)
}

// triggerCheck starts every pending event whose trade time has arrived: the
// listing leaves the active board and the seller plus queued participants get
// confirmation prompts.
func (s *Scheduler) triggerCheck(ctx context.Context, now time.Time) {
	due, err := s.events.DueEvents(ctx, now)
	if err != nil {
		s.log.Error("due events", zap.Error(err))
		return
	}
	for _, ev := range due {
		won, err := s.events.SetEventStatus(ctx, ev.ID, EventPending, EventStarted)
		if err != nil {
			s.log.Error("start event", zap.String("event", ev.ID), zap.Error(err))
			continue
		}
		if !won {
			continue
		}

		l, err := s.listings.GetListing(ctx, ev.ListingID)
		if err != nil || l == nil {
			s.log.Error("listing for event", zap.String("event", ev.ID), zap.Error(err))
			continue
		}
		if _, err := s.listings.DeactivateListing(ctx, l.ID, l.OwnerID); err != nil {
			s.log.Error("deactivate scheduled listing", zap.String("listing", l.ID), zap.Error(err))
		}

		msg := fmt.Sprintf("Trade time for %dx %s in %s. Are you at the meeting spot?", l.Qty, l.Item, l.Zone)
		notifyUser(s.pub, s.service, ev.ID, l.OwnerID, msg, "confirm", "decline")

		participants, err := s.events.Participants(ctx, ev.ID)
		if err != nil {
			s.log.Error("event participants", zap.String("event", ev.ID), zap.Error(err))
		}
		for _, p := range participants {
			notifyUser(s.pub, s.service, ev.ID, p, msg, "confirm", "decline")
		}

		refreshView(s.pub, s.service, l.GuildID, l.Zone, l.Side)
		s.log.Info("scheduled event started", zap.String("event", ev.ID), zap.Int("participants", len(participants)))
	}
}

// reminderCheck sends the one-shot expiring-soon notice.
func (s *Scheduler) reminderCheck(ctx context.Context, now time.Time) {
	soon, err := s.listings.ExpiringSoon(ctx, now, s.lookahead)
	if err != nil {
		s.log.Error("expiring soon", zap.Error(err))
		return
	}
	for _, l := range soon {
		left := l.ExpiresAt.Sub(now).Round(time.Hour)
		notifyUser(s.pub, s.service, l.ID, l.OwnerID,
			fmt.Sprintf("Your %s listing for %s in %s expires in about %s. Extend it to keep it on the board.", l.Side, l.Item, l.Zone, left))
		if err := s.listings.MarkReminded(ctx, l.ID); err != nil {
			s.log.Error("mark reminded", zap.String("listing", l.ID), zap.Error(err))
		}
	}
}

// expiryCheck deactivates listings past their expiry and tells the owner.
func (s *Scheduler) expiryCheck(ctx context.Context, now time.Time) {
	expired, err := s.listings.ExpiredListings(ctx, now)
	if err != nil {
		s.log.Error("expired listings", zap.Error(err))
		return
	}
	for _, l := range expired {
		if _, err := s.listings.DeactivateListing(ctx, l.ID, l.OwnerID); err != nil {
			s.log.Error("deactivate expired listing", zap.String("listing", l.ID), zap.Error(err))
			continue
		}
		notifyUser(s.pub, s.service, l.ID, l.OwnerID,
			fmt.Sprintf("Your %s listing for %s in %s expired and was removed from the board.", l.Side, l.Item, l.Zone))
		refreshView(s.pub, s.service, l.GuildID, l.Zone, l.Side)
	}
}

// promptCheck fans out the delayed rating prompts once an event's quorum was
// reached, and opens the rating window the moderator resolves against.
func (s *Scheduler) promptCheck(ctx context.Context, now time.Time) {
	due, err := s.events.DuePrompts(ctx, now)
	if err != nil {
		s.log.Error("due rating prompts", zap.Error(err))
		return
	}
	for _, ev := range due {
		l, err := s.listings.GetListing(ctx, ev.ListingID)
		if err != nil || l == nil {
			s.log.Error("listing for prompt", zap.String("event", ev.ID), zap.Error(err))
			continue
		}
		buyers, err := s.confirmedBuyers(ctx, ev.ID)
		if err != nil {
			s.log.Error("confirmations for prompt", zap.String("event", ev.ID), zap.Error(err))
			continue
		}
		if len(buyers) == 0 {
			// Quorum can no longer hold if confirmations were retracted.
			s.log.Warn("prompt due with no confirmed buyers", zap.String("event", ev.ID))
			continue
		}

		expected := make(map[string]string, len(buyers))
		for _, b := range buyers {
			expected[b] = l.OwnerID
			notifyUser(s.pub, s.service, ev.ID, b,
				fmt.Sprintf("How did the trade for %s go? Rate %s (1-5).", l.Item, l.OwnerID), "1", "2", "3", "4", "5")
		}
		s.coord.OpenRating(ev.ID, l.GuildID, l.Item, l.Zone, ev.ID, expected)

		if err := s.events.MarkPromptsSent(ctx, ev.ID); err != nil {
			s.log.Error("mark prompts sent", zap.String("event", ev.ID), zap.Error(err))
		}
		s.log.Info("rating prompts sent", zap.String("event", ev.ID), zap.Int("buyers", len(buyers)))
	}
}

// confirmedBuyers lists the buyers who answered yes to the trade-time prompt.
func (s *Scheduler) confirmedBuyers(ctx context.Context, eventID string) ([]string, error) {
	confs, err := s.events.Confirmations(ctx, eventID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, c := range confs {
		if c.Confirmed && c.Role == RoleBuyer {
			out = append(out, c.UserID)
		}
	}
	return out, nil
}

// ConfirmEvent records a participant's answer to the trade-time prompt. Once
// the seller and at least one buyer have confirmed, the delayed rating prompt
// is scheduled so the in-game handover can happen first.
func (s *Scheduler) ConfirmEvent(ctx context.Context, eventID, userID string, confirmed bool) error {
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if ev == nil {
		return ErrUnknownOrder
	}
	l, err := s.listings.GetListing(ctx, ev.ListingID)
	if err != nil || l == nil {
		return fmt.Errorf("listing for event %s: %w", eventID, err)
	}

	role := RoleBuyer
	if userID == l.OwnerID {
		role = RoleSeller
	}
	if err := s.events.RecordConfirmation(ctx, &EventConfirmation{
		EventID:   eventID,
		UserID:    userID,
		Role:      role,
		Confirmed: confirmed,
		CreatedAt: s.now(),
	}); err != nil {
		return fmt.Errorf("record confirmation: %w", err)
	}
	if !confirmed {
		return nil
	}

	if ev.PromptDueAt != nil {
		return nil
	}
	confs, err := s.events.Confirmations(ctx, eventID)
	if err != nil {
		return fmt.Errorf("confirmations: %w", err)
	}
	sellerOK, buyerOK := false, false
	for _, c := range confs {
		if !c.Confirmed {
			continue
		}
		if c.Role == RoleSeller {
			sellerOK = true
		} else {
			buyerOK = true
		}
	}
	if sellerOK && buyerOK {
		dueAt := s.now().Add(s.promptDelay)
		if err := s.events.SetPromptDue(ctx, eventID, dueAt); err != nil {
			return fmt.Errorf("set prompt due: %w", err)
		}
		s.log.Info("rating prompt scheduled", zap.String("event", eventID), zap.Time("due_at", dueAt))
	}
	return nil
}

// Extend pushes an active listing's expiry out by days and re-arms the
// one-shot reminder.
func (s *Scheduler) Extend(ctx context.Context, listingID, userID string, days int) error {
	l, err := s.listings.GetListing(ctx, listingID)
	if err != nil {
		return fmt.Errorf("get listing: %w", err)
	}
	if l == nil || !l.Active || l.OwnerID != userID {
		return ErrNotOwner
	}
	if err := s.listings.ExtendListing(ctx, listingID, days); err != nil {
		return fmt.Errorf("extend listing: %w", err)
	}
	s.log.Info("listing extended", zap.String("listing", listingID), zap.Int("days", days))
	return nil
}
