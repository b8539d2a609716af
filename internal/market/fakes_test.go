package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// In-memory stand-ins for the pgx repos and the kafka producer.

type fakeListings struct {
	mu       sync.Mutex
	listings map[string]*Listing
	txs      []Transaction
}

func newFakeListings() *fakeListings {
	return &fakeListings{listings: map[string]*Listing{}}
}

func (f *fakeListings) add(l Listing) *Listing {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.Active = true
	cp := l
	f.listings[l.ID] = &cp
	return &cp
}

func (f *fakeListings) CreateListing(_ context.Context, l *Listing) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l.Active = true
	cp := *l
	f.listings[l.ID] = &cp
	return l.ID, nil
}

func (f *fakeListings) GetListing(_ context.Context, id string) (*Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok {
		return nil, nil
	}
	cp := *l
	return &cp, nil
}

func (f *fakeListings) ActiveListings(_ context.Context, guildID string, side Side, zone string) ([]Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Listing
	for _, l := range f.listings {
		if l.Active && l.GuildID == guildID && l.Side == side && l.Zone == zone {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeListings) DeactivateListing(_ context.Context, id, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.listings[id]
	if !ok || !l.Active {
		return false, nil
	}
	now := time.Now()
	l.Active = false
	l.RemovedAt = &now
	return true, nil
}

func (f *fakeListings) ExtendListing(_ context.Context, id string, days int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.listings[id]
	l.ExpiresAt = l.ExpiresAt.AddDate(0, 0, days)
	l.Reminded = false
	return nil
}

func (f *fakeListings) RecordTransaction(_ context.Context, t *Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(f.txs, *t)
	return nil
}

func (f *fakeListings) ExpiredListings(_ context.Context, now time.Time) ([]Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Listing
	for _, l := range f.listings {
		if l.Active && !l.ExpiresAt.After(now) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeListings) ExpiringSoon(_ context.Context, now time.Time, window time.Duration) ([]Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Listing
	for _, l := range f.listings {
		if l.Active && !l.Reminded && l.ExpiresAt.After(now) && !l.ExpiresAt.After(now.Add(window)) {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (f *fakeListings) MarkReminded(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[id].Reminded = true
	return nil
}

func (f *fakeListings) transactions() []Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Transaction(nil), f.txs...)
}

type fakeEvents struct {
	mu           sync.Mutex
	events       map[string]*ScheduledEvent
	participants map[string][]string
	confs        map[string]map[string]EventConfirmation
}

func newFakeEvents() *fakeEvents {
	return &fakeEvents{
		events:       map[string]*ScheduledEvent{},
		participants: map[string][]string{},
		confs:        map[string]map[string]EventConfirmation{},
	}
}

func (f *fakeEvents) CreateEvent(_ context.Context, ev *ScheduledEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *ev
	f.events[ev.ID] = &cp
	return nil
}

func (f *fakeEvents) GetEvent(_ context.Context, id string) (*ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return nil, nil
	}
	cp := *ev
	return &cp, nil
}

func (f *fakeEvents) EventByListing(_ context.Context, listingID string) (*ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *ScheduledEvent
	for _, ev := range f.events {
		if ev.ListingID != listingID {
			continue
		}
		if latest == nil || ev.CreatedAt.After(latest.CreatedAt) {
			latest = ev
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeEvents) DueEvents(_ context.Context, now time.Time) ([]ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ScheduledEvent
	for _, ev := range f.events {
		if ev.Status == EventPending && !ev.TriggerAt.After(now) {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) SetEventStatus(_ context.Context, id string, from, to EventStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok || ev.Status != from || !CanTransitionEvent(from, to) {
		return false, nil
	}
	ev.Status = to
	return true, nil
}

func (f *fakeEvents) AddParticipant(_ context.Context, eventID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.participants[eventID] {
		if p == userID {
			return nil
		}
	}
	f.participants[eventID] = append(f.participants[eventID], userID)
	return nil
}

func (f *fakeEvents) Participants(_ context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.participants[eventID]...), nil
}

func (f *fakeEvents) RecordConfirmation(_ context.Context, c *EventConfirmation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.confs[c.EventID] == nil {
		f.confs[c.EventID] = map[string]EventConfirmation{}
	}
	f.confs[c.EventID][c.UserID] = *c
	if c.Role == RoleSeller {
		if ev, ok := f.events[c.EventID]; ok {
			ev.SellerConfirmed = c.Confirmed
		}
	}
	return nil
}

func (f *fakeEvents) Confirmations(_ context.Context, eventID string) ([]EventConfirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []EventConfirmation
	for _, c := range f.confs[eventID] {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeEvents) SetPromptDue(_ context.Context, eventID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev, ok := f.events[eventID]; ok && ev.PromptDueAt == nil {
		ev.PromptDueAt = &at
	}
	return nil
}

func (f *fakeEvents) DuePrompts(_ context.Context, now time.Time) ([]ScheduledEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []ScheduledEvent
	for _, ev := range f.events {
		if ev.Status == EventStarted && !ev.PromptsSent && ev.PromptDueAt != nil && !ev.PromptDueAt.After(now) {
			out = append(out, *ev)
		}
	}
	return out, nil
}

func (f *fakeEvents) MarkPromptsSent(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[eventID].PromptsSent = true
	return nil
}

type fakeRatings struct {
	mu      sync.Mutex
	ratings []Rating
	reps    map[string]ReputationSummary
	cfgs    map[string]GuildRatingConfig
	stats   map[string]TransactionStats
}

func newFakeRatings() *fakeRatings {
	return &fakeRatings{
		reps:  map[string]ReputationSummary{},
		cfgs:  map[string]GuildRatingConfig{},
		stats: map[string]TransactionStats{},
	}
}

func (f *fakeRatings) InsertRating(_ context.Context, r *Rating) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratings = append(f.ratings, *r)
	return nil
}

func (f *fakeRatings) ApprovedRatings(_ context.Context, ratedID string) ([]Rating, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Rating
	for _, r := range f.ratings {
		if r.RatedID == ratedID && r.Status == RatingApproved {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRatings) UpsertReputation(_ context.Context, s *ReputationSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reps[s.UserID] = *s
	return nil
}

func (f *fakeRatings) Reputation(_ context.Context, userID string) (*ReputationSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.reps[userID]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (f *fakeRatings) TransactionStats(_ context.Context, userID string) (*TransactionStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ts := f.stats[userID]
	return &ts, nil
}

func (f *fakeRatings) GuildConfig(_ context.Context, guildID string) (*GuildRatingConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cfg, ok := f.cfgs[guildID]
	if !ok {
		return nil, nil
	}
	return &cfg, nil
}

func (f *fakeRatings) all() []Rating {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Rating(nil), f.ratings...)
}

type pubMsg struct {
	Topic string
	Env   Envelope
}

type fakePub struct {
	mu   sync.Mutex
	msgs []pubMsg
}

func (f *fakePub) Publish(topic string, _, value []byte) {
	var env Envelope
	_ = json.Unmarshal(value, &env)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, pubMsg{Topic: topic, Env: env})
}

func (f *fakePub) byTopic(topic string) []pubMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []pubMsg
	for _, m := range f.msgs {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakePub) userNotifies() []UserNotifyPayload {
	var out []UserNotifyPayload
	for _, m := range f.byTopic(TopicNotifyUser) {
		var p UserNotifyPayload
		_ = json.Unmarshal(m.Env.Payload, &p)
		out = append(out, p)
	}
	return out
}

func (f *fakePub) channelNotifies() []ChannelNotifyPayload {
	var out []ChannelNotifyPayload
	for _, m := range f.byTopic(TopicNotifyChannel) {
		var p ChannelNotifyPayload
		_ = json.Unmarshal(m.Env.Payload, &p)
		out = append(out, p)
	}
	return out
}
