package market

import (
	"time"

	"github.com/google/uuid"

	kafkax "github.com/tradebazaar/bazaarbot/internal/kafka"
)

func newEnvelope(producer, eventType, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

func notifyUser(pub Publisher, producer, correlationID, userID, content string, choices ...string) {
	env := newEnvelope(producer, EventUserNotify, correlationID, UserNotifyPayload{
		UserID:  userID,
		Content: content,
		Choices: choices,
	})
	pub.Publish(TopicNotifyUser, PartitionKey(correlationID), kafkax.MustMarshal(env))
}

func notifyChannel(pub Publisher, producer, correlationID, channelID, content string) {
	env := newEnvelope(producer, EventChannelNotify, correlationID, ChannelNotifyPayload{
		ChannelID: channelID,
		Content:   content,
	})
	pub.Publish(TopicNotifyChannel, PartitionKey(correlationID), kafkax.MustMarshal(env))
}

func refreshView(pub Publisher, producer, guildID, zone string, side Side) {
	env := newEnvelope(producer, EventViewRefresh, guildID, ViewRefreshPayload{
		GuildID: guildID,
		Zone:    zone,
		Side:    side,
	})
	pub.Publish(TopicViewRefresh, PartitionKey(guildID), kafkax.MustMarshal(env))
}
