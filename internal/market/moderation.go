package market

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReviewTicket is an open admin-review request for one low-score rating.
// Nothing is persisted until the admin decides.
type ReviewTicket struct {
	TicketID  string
	Key       string // order or event id
	GuildID   string
	RaterID   string
	RatedID   string
	Score     int
	Comment   string
	CreatedAt time.Time
}

// Moderator routes low-score ratings through admin review and posts everything
// else directly. It shares the coordinator's rating windows so order ratings
// and scheduled-event ratings flow through the same machinery.
type Moderator struct {
	coord   *Coordinator
	store   RatingStore
	events  EventStore
	agg     *Aggregator
	pub     Publisher
	log     *zap.Logger
	service string

	// DefaultThreshold applies when a guild has no config row.
	DefaultThreshold int

	mu      sync.Mutex
	tickets map[string]*ReviewTicket
	open    map[string]bool // key+rater with a ticket in flight
}

func NewModerator(coord *Coordinator, store RatingStore, events EventStore, agg *Aggregator, pub Publisher, log *zap.Logger, service string, defaultThreshold int) *Moderator {
	return &Moderator{
		coord:            coord,
		store:            store,
		events:           events,
		agg:              agg,
		pub:              pub,
		log:              log,
		service:          service,
		DefaultThreshold: defaultThreshold,
		tickets:          map[string]*ReviewTicket{},
		open:             map[string]bool{},
	}
}

// SubmitRating takes one party's rating for an open window. Returns true when
// the rating posted immediately, false when it was routed to admin review.
func (m *Moderator) SubmitRating(ctx context.Context, key, raterID, ratedID string, score int, comment string) (bool, error) {
	if score < 1 || score > 5 {
		return false, ErrInvalidScore
	}

	win := m.coord.RatingWindow(key)
	if win == nil {
		return false, ErrNoRatingWindow
	}
	expectedRated, isParty := win.Expected[raterID]
	if !isParty {
		return false, ErrNotAParty
	}
	if expectedRated != ratedID {
		return false, fmt.Errorf("%w: expected rating for %s", ErrNotAParty, expectedRated)
	}
	if !win.Open(raterID) {
		return false, ErrDuplicateRating
	}

	m.mu.Lock()
	if m.open[slotKey(key, raterID)] {
		m.mu.Unlock()
		return false, ErrDuplicateRating
	}
	m.mu.Unlock()

	cfg := m.guildConfig(ctx, win.GuildID)
	if score < cfg.Threshold && cfg.ReviewChannelID != "" {
		if !m.openTicket(key, win.GuildID, raterID, ratedID, score, comment, cfg) {
			return false, ErrDuplicateRating
		}
		return false, nil
	}

	if err := m.persist(ctx, win.GuildID, raterID, ratedID, score, comment, nil); err != nil {
		return false, err
	}
	m.closeSlot(ctx, key, raterID, &SubmittedRating{
		RatedID: ratedID, Score: score, Comment: comment, Approved: true, At: time.Now(),
	})
	return true, nil
}

// Resolve applies an admin decision to an open ticket. Approval persists the
// rating and recomputes reputation; rejection discards it. Either way the
// rater's slot in the window closes.
func (m *Moderator) Resolve(ctx context.Context, ticketID string, approved bool, adminID string) error {
	m.mu.Lock()
	t, ok := m.tickets[ticketID]
	if ok {
		delete(m.tickets, ticketID)
		delete(m.open, slotKey(t.Key, t.RaterID))
	}
	m.mu.Unlock()
	if !ok {
		return ErrUnknownTicket
	}

	if approved {
		if err := m.persist(ctx, t.GuildID, t.RaterID, t.RatedID, t.Score, t.Comment, &adminID); err != nil {
			return err
		}
	} else {
		m.log.Info("rating rejected by admin",
			zap.String("ticket", ticketID), zap.String("admin", adminID), zap.String("rater", t.RaterID))
	}

	m.closeSlot(ctx, t.Key, t.RaterID, &SubmittedRating{
		RatedID: t.RatedID, Score: t.Score, Comment: t.Comment, Approved: approved, At: time.Now(),
	})

	outcome := "approved"
	if !approved {
		outcome = "rejected"
	}
	notifyUser(m.pub, m.service, t.Key, t.RaterID, fmt.Sprintf("Your rating for this trade was %s by a moderator.", outcome))
	return nil
}

// Ticket returns an open ticket snapshot, for the admin surface.
func (m *Moderator) Ticket(ticketID string) *ReviewTicket {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tickets[ticketID]
	if !ok {
		return nil
	}
	cp := *t
	return &cp
}

// openTicket reserves the rater's slot and files the review ticket in one
// critical section, so two simultaneous submissions produce one ticket.
// Reports whether this call won the reservation.
func (m *Moderator) openTicket(key, guildID, raterID, ratedID string, score int, comment string, cfg *GuildRatingConfig) bool {
	t := &ReviewTicket{
		TicketID:  uuid.NewString(),
		Key:       key,
		GuildID:   guildID,
		RaterID:   raterID,
		RatedID:   ratedID,
		Score:     score,
		Comment:   comment,
		CreatedAt: time.Now(),
	}
	m.mu.Lock()
	if m.open[slotKey(key, raterID)] {
		m.mu.Unlock()
		return false
	}
	m.tickets[t.TicketID] = t
	m.open[slotKey(key, raterID)] = true
	m.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Rating review %s: %s rated %s %d/5.", t.TicketID, raterID, ratedID, score)
	if len(comment) < cfg.MinCommentLen {
		fmt.Fprintf(&b, " Comment below minimum length (%d).", cfg.MinCommentLen)
	}
	if comment != "" {
		fmt.Fprintf(&b, " Comment: %q", comment)
	}
	notifyChannel(m.pub, m.service, t.TicketID, cfg.ReviewChannelID, b.String())
	m.log.Info("rating routed to review",
		zap.String("ticket", t.TicketID), zap.String("guild", guildID), zap.Int("score", score))
	return true
}

func (m *Moderator) persist(ctx context.Context, guildID, raterID, ratedID string, score int, comment string, adminID *string) error {
	r := &Rating{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		RaterID:   raterID,
		RatedID:   ratedID,
		Score:     score,
		Comment:   comment,
		Status:    RatingApproved,
		AdminID:   adminID,
		CreatedAt: time.Now(),
	}
	if err := m.store.InsertRating(ctx, r); err != nil {
		return fmt.Errorf("insert rating: %w", err)
	}
	if _, err := m.agg.Recompute(ctx, ratedID); err != nil {
		m.log.Error("recompute reputation", zap.String("user", ratedID), zap.Error(err))
	}
	return nil
}

// closeSlot resolves the rater's slot; when the window empties for a
// scheduled event it completes the event and posts the summary.
func (m *Moderator) closeSlot(ctx context.Context, key, raterID string, sub *SubmittedRating) {
	done, rec, err := m.coord.ResolveRatingSlot(key, raterID, sub)
	if err != nil {
		m.log.Warn("close rating slot", zap.String("key", key), zap.String("rater", raterID), zap.Error(err))
		return
	}
	if !done || rec.EventID == "" {
		return
	}

	if ok, err := m.events.SetEventStatus(ctx, rec.EventID, EventStarted, EventCompleted); err != nil || !ok {
		m.log.Warn("complete scheduled event", zap.String("event", rec.EventID), zap.Error(err))
	}

	cfg := m.guildConfig(ctx, rec.GuildID)
	if cfg.ReviewChannelID == "" {
		// No admin/log channel configured; skip the summary quietly.
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Trade event %s finished: %s in %s.", rec.EventID, rec.Item, rec.Zone)
	for rater, s := range rec.Resolved {
		if s.Approved {
			fmt.Fprintf(&b, " %s -> %s: %d/5.", rater, s.RatedID, s.Score)
		} else {
			fmt.Fprintf(&b, " %s -> %s: rejected.", rater, s.RatedID)
		}
	}
	notifyChannel(m.pub, m.service, rec.EventID, cfg.ReviewChannelID, b.String())
}

func (m *Moderator) guildConfig(ctx context.Context, guildID string) *GuildRatingConfig {
	cfg, err := m.store.GuildConfig(ctx, guildID)
	if err != nil || cfg == nil {
		if err != nil {
			m.log.Warn("guild rating config", zap.String("guild", guildID), zap.Error(err))
		}
		return &GuildRatingConfig{GuildID: guildID, Threshold: m.DefaultThreshold}
	}
	return cfg
}

func slotKey(key, raterID string) string { return key + ":" + raterID }
