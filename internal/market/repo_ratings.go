package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/tradebazaar/bazaarbot/internal/redisx"
)

// RatingRepo is the pgx-backed RatingStore. Guild config reads go through a
// short-TTL Redis cache when a client is set; Redis misses or errors fall
// back to Postgres.
type RatingRepo struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

var _ RatingStore = (*RatingRepo)(nil)

func (r *RatingRepo) InsertRating(ctx context.Context, rt *Rating) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO ratings(id, guild_id, rater_id, rated_id, score, comment, status, admin_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, rt.ID, rt.GuildID, rt.RaterID, rt.RatedID, rt.Score, rt.Comment, rt.Status, rt.AdminID, rt.CreatedAt)
	return err
}

func (r *RatingRepo) ApprovedRatings(ctx context.Context, ratedID string) ([]Rating, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, guild_id, rater_id, rated_id, score, comment, status, admin_id, created_at
		FROM ratings WHERE rated_id=$1 AND status=$2
		ORDER BY created_at
	`, ratedID, RatingApproved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rating
	for rows.Next() {
		var rt Rating
		if err := rows.Scan(&rt.ID, &rt.GuildID, &rt.RaterID, &rt.RatedID, &rt.Score,
			&rt.Comment, &rt.Status, &rt.AdminID, &rt.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rt)
	}
	return out, rows.Err()
}

func (r *RatingRepo) UpsertReputation(ctx context.Context, s *ReputationSummary) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO user_reputation(user_id, rep_avg, rep_count, activity_score)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (user_id) DO UPDATE
		SET rep_avg=EXCLUDED.rep_avg, rep_count=EXCLUDED.rep_count
	`, s.UserID, s.Average, s.Count, s.ActivityScore)
	return err
}

func (r *RatingRepo) Reputation(ctx context.Context, userID string) (*ReputationSummary, error) {
	var s ReputationSummary
	err := r.DB.QueryRow(ctx, `
		SELECT user_id, rep_avg, rep_count, activity_score FROM user_reputation WHERE user_id=$1
	`, userID).Scan(&s.UserID, &s.Average, &s.Count, &s.ActivityScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RatingRepo) TransactionStats(ctx context.Context, userID string) (*TransactionStats, error) {
	var ts TransactionStats
	err := r.DB.QueryRow(ctx, `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE status=$2)
		FROM transactions WHERE seller_id=$1 OR buyer_id=$1
	`, userID, TxCompleted).Scan(&ts.Total, &ts.Completed)
	if err != nil {
		return nil, err
	}
	return &ts, nil
}

func (r *RatingRepo) GuildConfig(ctx context.Context, guildID string) (*GuildRatingConfig, error) {
	key := fmt.Sprintf(redisx.KeyGuildRatingConfig, guildID)
	if r.Redis != nil {
		if s, err := r.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			var cfg GuildRatingConfig
			if json.Unmarshal([]byte(s), &cfg) == nil {
				return &cfg, nil
			}
		}
	}

	var cfg GuildRatingConfig
	err := r.DB.QueryRow(ctx, `
		SELECT guild_id, COALESCE(review_channel_id, ''), threshold, min_comment_len
		FROM guild_rating_config WHERE guild_id=$1
	`, guildID).Scan(&cfg.GuildID, &cfg.ReviewChannelID, &cfg.Threshold, &cfg.MinCommentLen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if r.Redis != nil {
		if b, err := json.Marshal(cfg); err == nil {
			_ = r.Redis.Set(ctx, key, b, redisx.TTLGuildConfig).Err()
		}
	}
	return &cfg, nil
}
