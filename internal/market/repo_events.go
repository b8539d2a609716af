package market

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepo is the pgx-backed EventStore.
type EventRepo struct{ DB *pgxpool.Pool }

var _ EventStore = (*EventRepo)(nil)

func (r *EventRepo) CreateEvent(ctx context.Context, ev *ScheduledEvent) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO scheduled_events(id, listing_id, trigger_at, status, seller_confirmed,
		                             prompt_due_at, prompts_sent, created_at)
		VALUES ($1,$2,$3,$4,false,NULL,false,$5)
	`, ev.ID, ev.ListingID, ev.TriggerAt, ev.Status, ev.CreatedAt)
	return err
}

const eventCols = `id, listing_id, trigger_at, status, seller_confirmed, prompt_due_at, prompts_sent, created_at`

func scanEvent(row pgx.Row) (*ScheduledEvent, error) {
	var ev ScheduledEvent
	err := row.Scan(&ev.ID, &ev.ListingID, &ev.TriggerAt, &ev.Status, &ev.SellerConfirmed,
		&ev.PromptDueAt, &ev.PromptsSent, &ev.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ev, nil
}

func (r *EventRepo) GetEvent(ctx context.Context, id string) (*ScheduledEvent, error) {
	ev, err := scanEvent(r.DB.QueryRow(ctx, `SELECT `+eventCols+` FROM scheduled_events WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func (r *EventRepo) EventByListing(ctx context.Context, listingID string) (*ScheduledEvent, error) {
	ev, err := scanEvent(r.DB.QueryRow(ctx, `
		SELECT `+eventCols+` FROM scheduled_events
		WHERE listing_id=$1 ORDER BY created_at DESC LIMIT 1
	`, listingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return ev, err
}

func (r *EventRepo) DueEvents(ctx context.Context, now time.Time) ([]ScheduledEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+eventCols+` FROM scheduled_events
		WHERE status=$1 AND trigger_at <= $2
		ORDER BY trigger_at
	`, EventPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]ScheduledEvent, error) {
	var out []ScheduledEvent
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ev)
	}
	return out, rows.Err()
}

// SetEventStatus is a compare-and-set on the status column, so two poll ticks
// racing on the same due event produce exactly one winner.
func (r *EventRepo) SetEventStatus(ctx context.Context, id string, from, to EventStatus) (bool, error) {
	if !CanTransitionEvent(from, to) {
		return false, nil
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE scheduled_events SET status=$3 WHERE id=$1 AND status=$2
	`, id, from, to)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *EventRepo) AddParticipant(ctx context.Context, eventID, userID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO event_participants(event_id, user_id)
		VALUES ($1,$2)
		ON CONFLICT (event_id, user_id) DO NOTHING
	`, eventID, userID)
	return err
}

func (r *EventRepo) Participants(ctx context.Context, eventID string) ([]string, error) {
	rows, err := r.DB.Query(ctx, `SELECT user_id FROM event_participants WHERE event_id=$1`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RecordConfirmation upserts on (event, user); a re-click overwrites the
// previous answer. Seller confirmations also flip the event's
// seller_confirmed flag.
func (r *EventRepo) RecordConfirmation(ctx context.Context, c *EventConfirmation) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO event_confirmations(event_id, user_id, role, confirmed, created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (event_id, user_id) DO UPDATE SET confirmed=EXCLUDED.confirmed
	`, c.EventID, c.UserID, c.Role, c.Confirmed, c.CreatedAt); err != nil {
		return err
	}
	if c.Role == RoleSeller {
		if _, err := tx.Exec(ctx, `
			UPDATE scheduled_events SET seller_confirmed=$2 WHERE id=$1
		`, c.EventID, c.Confirmed); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *EventRepo) Confirmations(ctx context.Context, eventID string) ([]EventConfirmation, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT event_id, user_id, role, confirmed, created_at
		FROM event_confirmations WHERE event_id=$1
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EventConfirmation
	for rows.Next() {
		var c EventConfirmation
		if err := rows.Scan(&c.EventID, &c.UserID, &c.Role, &c.Confirmed, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *EventRepo) SetPromptDue(ctx context.Context, eventID string, at time.Time) error {
	_, err := r.DB.Exec(ctx, `
		UPDATE scheduled_events SET prompt_due_at=$2 WHERE id=$1 AND prompt_due_at IS NULL
	`, eventID, at)
	return err
}

func (r *EventRepo) DuePrompts(ctx context.Context, now time.Time) ([]ScheduledEvent, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+eventCols+` FROM scheduled_events
		WHERE status=$1 AND NOT prompts_sent AND prompt_due_at IS NOT NULL AND prompt_due_at <= $2
		ORDER BY prompt_due_at
	`, EventStarted, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (r *EventRepo) MarkPromptsSent(ctx context.Context, eventID string) error {
	_, err := r.DB.Exec(ctx, `UPDATE scheduled_events SET prompts_sent=true WHERE id=$1`, eventID)
	return err
}
