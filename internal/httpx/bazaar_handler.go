package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tradebazaar/bazaarbot/internal/market"
	"github.com/tradebazaar/bazaarbot/internal/redisx"
)

// BazaarHandler exposes the command surface the chat UI layer calls into:
// listing management, match requests, the order handshake, ratings and admin
// moderation.
type BazaarHandler struct {
	Coord     *market.Coordinator
	Moderator *market.Moderator
	Scheduler *market.Scheduler
	Agg       *market.Aggregator
	Listings  market.ListingStore
	Redis     *redis.Client
	Log       *zap.Logger
}

func (h *BazaarHandler) Register(r *chi.Mux) {
	r.Post("/listings", h.createListing)
	r.Get("/listings", h.browseListings)
	r.Post("/listings/{id}/extend", h.extendListing)
	r.Post("/match", h.requestMatch)
	r.Post("/orders/{id}/confirm", h.confirmOrder)
	r.Post("/orders/{id}/decline", h.declineOrder)
	r.Post("/events/{id}/confirm", h.confirmEvent)
	r.Post("/ratings", h.submitRating)
	r.Post("/moderation/{ticket}/resolve", h.resolveModeration)
	r.Get("/users/{id}/score", h.traderScore)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps the domain taxonomy onto status codes. Internal errors are
// logged in full and surfaced as a short generic message.
func (h *BazaarHandler) writeErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, market.ErrUnknownOrder), errors.Is(err, market.ErrUnknownTicket),
		errors.Is(err, market.ErrNoRatingWindow):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, market.ErrNotAParty), errors.Is(err, market.ErrNotOwner):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, market.ErrInvalidScore), errors.Is(err, market.ErrDuplicateRating):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, market.ErrStoreUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable, try again shortly"})
	default:
		h.Log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "something went wrong, try again"})
	}
}

type createListingReq struct {
	GuildID     string     `json:"guild_id"`
	OwnerID     string     `json:"owner_id"`
	Side        string     `json:"side"`
	Zone        string     `json:"zone"`
	Subcategory string     `json:"subcategory"`
	Item        string     `json:"item"`
	Qty         int        `json:"qty"`
	Notes       string     `json:"notes"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	TTLDays     int        `json:"ttl_days"`
}

func (h *BazaarHandler) createListing(w http.ResponseWriter, r *http.Request) {
	var req createListingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	side, err := market.ParseSide(req.Side)
	if err != nil || req.GuildID == "" || req.OwnerID == "" || req.Zone == "" || req.Item == "" || req.Qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid fields"})
		return
	}
	if req.TTLDays <= 0 {
		req.TTLDays = 7
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	now := time.Now()
	l := &market.Listing{
		GuildID:     req.GuildID,
		OwnerID:     req.OwnerID,
		Side:        side,
		Zone:        req.Zone,
		Subcategory: req.Subcategory,
		Item:        req.Item,
		Qty:         req.Qty,
		Notes:       req.Notes,
		ScheduledAt: req.ScheduledAt,
		CreatedAt:   now,
		ExpiresAt:   now.AddDate(0, 0, req.TTLDays),
	}
	id, err := h.Coord.CreateListing(ctx, l)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"listing_id": id})
}

func (h *BazaarHandler) browseListings(w http.ResponseWriter, r *http.Request) {
	guildID := r.URL.Query().Get("guild_id")
	zone := r.URL.Query().Get("zone")
	side, err := market.ParseSide(r.URL.Query().Get("side"))
	if err != nil || guildID == "" || zone == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "guild_id, zone and side are required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyBazaarView, guildID, zone, side)
	if h.Redis != nil {
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(s))
			return
		}
	}

	listings, err := h.Listings.ActiveListings(ctx, guildID, side, zone)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	b, _ := json.Marshal(map[string]any{"listings": listings})
	if h.Redis != nil {
		_ = h.Redis.Set(ctx, key, b, redisx.TTLBazaarView).Err()
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func (h *BazaarHandler) extendListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Days   int    `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Days <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and positive days required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := h.Scheduler.Extend(ctx, chi.URLParam(r, "id"), req.UserID, req.Days); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "listing extended"})
}

func (h *BazaarHandler) requestMatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID  string `json:"user_id"`
		GuildID string `json:"guild_id"`
		Side    string `json:"side"`
		Zone    string `json:"zone"`
		Item    string `json:"item"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	side, err := market.ParseSide(req.Side)
	if err != nil || req.UserID == "" || req.GuildID == "" || req.Zone == "" || req.Item == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing or invalid fields"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	found, err := h.Coord.RequestMatch(ctx, req.UserID, req.GuildID, side, req.Zone, req.Item)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"match_found": found})
}

func (h *BazaarHandler) confirmOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Coord.Confirm(ctx, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	status := "pending"
	if res == market.Completed {
		status = "completed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *BazaarHandler) declineOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Coord.Decline(ctx, chi.URLParam(r, "id"), req.UserID, req.Reason); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (h *BazaarHandler) confirmEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string `json:"user_id"`
		Confirmed *bool  `json:"confirmed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.Confirmed == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "user_id and confirmed required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Scheduler.ConfirmEvent(ctx, chi.URLParam(r, "id"), req.UserID, *req.Confirmed); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "recorded"})
}

func (h *BazaarHandler) submitRating(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key     string `json:"key"` // order or event id
		RaterID string `json:"rater_id"`
		RatedID string `json:"rated_id"`
		Score   int    `json:"score"`
		Comment string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Key == "" || req.RaterID == "" || req.RatedID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key, rater_id and rated_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	posted, err := h.Moderator.SubmitRating(ctx, req.Key, req.RaterID, req.RatedID, req.Score, req.Comment)
	if err != nil {
		h.writeErr(w, err)
		return
	}
	status := "posted"
	if !posted {
		status = "held_for_review"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *BazaarHandler) resolveModeration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Approved *bool  `json:"approved"`
		AdminID  string `json:"admin_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Approved == nil || req.AdminID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "approved and admin_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := h.Moderator.Resolve(ctx, chi.URLParam(r, "ticket"), *req.Approved, req.AdminID); err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *BazaarHandler) traderScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	cs, err := h.Agg.CompositeFor(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cs)
}
