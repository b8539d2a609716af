package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/tradebazaar/bazaarbot/internal/kafka"
	"github.com/tradebazaar/bazaarbot/internal/market"
	"github.com/tradebazaar/bazaarbot/internal/redisx"
)

// Service consumes outbound bazaar events and delivers them through the
// Notifier. Kafka gives at-least-once, so each envelope is deduped in Redis
// before delivery. A failed delivery is logged and committed anyway: the
// state machine never depends on a DM landing.
type Service struct {
	Notifier Notifier
	Redis    *redis.Client
	Log      *zap.Logger
}

// HandleEvent is the consumer handler for every outbound topic.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	var env market.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	if s.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyNotifyDedup, env.EventID)
		if seen, _ := redisx.Exists(ctx, s.Redis, dkey); seen {
			return nil
		}
		_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLNotifyDedup).Err()
	}

	switch env.EventType {
	case market.EventUserNotify:
		p, err := kafkax.UnwrapPayload[market.UserNotifyPayload](env.Payload)
		if err != nil {
			return err
		}
		delivered := false
		if len(p.Choices) > 0 {
			delivered = s.Notifier.PostInteractiveChoice(ctx, p.UserID, p.Content, p.Choices)
		} else {
			delivered = s.Notifier.NotifyUser(ctx, p.UserID, p.Content)
		}
		if !delivered {
			s.Log.Warn("user delivery failed",
				zap.String("event", env.EventID), zap.String("user", p.UserID))
		}
	case market.EventChannelNotify:
		p, err := kafkax.UnwrapPayload[market.ChannelNotifyPayload](env.Payload)
		if err != nil {
			return err
		}
		if !s.Notifier.NotifyChannel(ctx, p.ChannelID, p.Content) {
			s.Log.Warn("channel delivery failed",
				zap.String("event", env.EventID), zap.String("channel", p.ChannelID))
		}
	case market.EventViewRefresh:
		p, err := kafkax.UnwrapPayload[market.ViewRefreshPayload](env.Payload)
		if err != nil {
			return err
		}
		// Drop the cached board so the next browse re-renders.
		if s.Redis != nil {
			key := fmt.Sprintf(redisx.KeyBazaarView, p.GuildID, p.Zone, p.Side)
			_ = s.Redis.Del(ctx, key).Err()
		}
		s.Log.Debug("view cache invalidated", zap.String("guild", p.GuildID), zap.String("zone", p.Zone))
	default:
		s.Log.Warn("unknown event type", zap.String("type", env.EventType))
	}
	return nil
}
