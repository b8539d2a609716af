package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ListingRepo is the pgx-backed ListingStore.
type ListingRepo struct{ DB *pgxpool.Pool }

var _ ListingStore = (*ListingRepo)(nil)

func (r *ListingRepo) CreateListing(ctx context.Context, l *Listing) (string, error) {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = time.Now()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO listings(id, guild_id, owner_id, side, zone, subcategory, item, qty, notes,
		                     scheduled_at, created_at, expires_at, active, reminded)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,true,false)
	`, l.ID, l.GuildID, l.OwnerID, l.Side, l.Zone, l.Subcategory, l.Item, l.Qty, l.Notes,
		l.ScheduledAt, l.CreatedAt, l.ExpiresAt)
	if err != nil {
		return "", err
	}
	l.Active = true
	return l.ID, nil
}

const listingCols = `id, guild_id, owner_id, side, zone, subcategory, item, qty, notes,
	scheduled_at, created_at, expires_at, removed_at, active, reminded`

func scanListing(row pgx.Row) (*Listing, error) {
	var l Listing
	err := row.Scan(&l.ID, &l.GuildID, &l.OwnerID, &l.Side, &l.Zone, &l.Subcategory, &l.Item,
		&l.Qty, &l.Notes, &l.ScheduledAt, &l.CreatedAt, &l.ExpiresAt, &l.RemovedAt, &l.Active, &l.Reminded)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ListingRepo) GetListing(ctx context.Context, id string) (*Listing, error) {
	l, err := scanListing(r.DB.QueryRow(ctx, `SELECT `+listingCols+` FROM listings WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return l, err
}

func (r *ListingRepo) ActiveListings(ctx context.Context, guildID string, side Side, zone string) ([]Listing, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+listingCols+` FROM listings
		WHERE guild_id=$1 AND side=$2 AND zone=$3 AND active
		ORDER BY created_at
	`, guildID, side, zone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

func collectListings(rows pgx.Rows) ([]Listing, error) {
	var out []Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

// DeactivateListing soft-deletes: active goes false and removed_at is set,
// the row itself stays for the audit trail. Reports whether a row changed.
func (r *ListingRepo) DeactivateListing(ctx context.Context, id, actingUser string) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE listings SET active=false, removed_at=now()
		WHERE id=$1 AND active
	`, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *ListingRepo) ExtendListing(ctx context.Context, id string, days int) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE listings
		SET expires_at = expires_at + make_interval(days => $2), reminded=false
		WHERE id=$1 AND active
	`, id, days)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return fmt.Errorf("listing %s not active", id)
	}
	return nil
}

func (r *ListingRepo) RecordTransaction(ctx context.Context, t *Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	_, err := r.DB.Exec(ctx, `
		INSERT INTO transactions(id, listing_id, guild_id, seller_id, buyer_id, item, zone, qty,
		                         status, created_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, t.ID, t.ListingID, t.GuildID, t.SellerID, t.BuyerID, t.Item, t.Zone, t.Qty,
		t.Status, t.CreatedAt, t.CompletedAt)
	return err
}

func (r *ListingRepo) ExpiredListings(ctx context.Context, now time.Time) ([]Listing, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+listingCols+` FROM listings
		WHERE active AND expires_at <= $1
		ORDER BY expires_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

func (r *ListingRepo) ExpiringSoon(ctx context.Context, now time.Time, window time.Duration) ([]Listing, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+listingCols+` FROM listings
		WHERE active AND NOT reminded AND expires_at > $1 AND expires_at <= $2
		ORDER BY expires_at
	`, now, now.Add(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectListings(rows)
}

func (r *ListingRepo) MarkReminded(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `UPDATE listings SET reminded=true WHERE id=$1`, id)
	return err
}
