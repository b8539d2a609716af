package market

import (
	"encoding/json"
	"time"
)

// Outbound topics. State transitions publish here; the notifier worker owns
// actual chat-platform delivery so a slow or failing DM never blocks the
// state machine.
const (
	TopicNotifyUser    = "bazaar.notify.user"
	TopicNotifyChannel = "bazaar.notify.channel"
	TopicViewRefresh   = "bazaar.view.refresh"
)

const (
	EventUserNotify    = "UserNotify"
	EventChannelNotify = "ChannelNotify"
	EventViewRefresh   = "ViewRefresh"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order/event/listing id
	Payload       json.RawMessage `json:"payload"`
}

// UserNotifyPayload is a direct message. Non-empty Choices renders an
// interactive prompt (confirm/decline buttons, star picker) instead of plain
// text.
type UserNotifyPayload struct {
	UserID  string   `json:"user_id"`
	Content string   `json:"content"`
	Choices []string `json:"choices,omitempty"`
}

type ChannelNotifyPayload struct {
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
}

type ViewRefreshPayload struct {
	GuildID string `json:"guild_id"`
	Zone    string `json:"zone"`
	Side    Side   `json:"side"`
}

// PartitionKey keeps every event for one correlation id in order.
func PartitionKey(correlationID string) []byte { return []byte(correlationID) }
