package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tradebazaar/bazaarbot/internal/market"
)

type recordedDelivery struct {
	kind    string
	target  string
	content string
	choices []string
}

type recordingNotifier struct {
	deliveries []recordedDelivery
	fail       bool
}

func (r *recordingNotifier) NotifyUser(_ context.Context, userID, content string) bool {
	r.deliveries = append(r.deliveries, recordedDelivery{kind: "user", target: userID, content: content})
	return !r.fail
}

func (r *recordingNotifier) NotifyChannel(_ context.Context, channelID, content string) bool {
	r.deliveries = append(r.deliveries, recordedDelivery{kind: "channel", target: channelID, content: content})
	return !r.fail
}

func (r *recordingNotifier) PostInteractiveChoice(_ context.Context, userID, content string, choices []string) bool {
	r.deliveries = append(r.deliveries, recordedDelivery{kind: "choice", target: userID, content: content, choices: choices})
	return !r.fail
}

func message(t *testing.T, eventType string, payload any) kafkago.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	env := market.Envelope{
		EventID:      "ev-1",
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload:      raw,
	}
	b, err := json.Marshal(env)
	require.NoError(t, err)
	return kafkago.Message{Value: b}
}

func TestHandleUserNotifyPlain(t *testing.T) {
	n := &recordingNotifier{}
	svc := &Service{Notifier: n, Log: zap.NewNop()}

	m := message(t, market.EventUserNotify, market.UserNotifyPayload{UserID: "u1", Content: "hello"})
	require.NoError(t, svc.HandleEvent(context.Background(), m))

	require.Len(t, n.deliveries, 1)
	assert.Equal(t, "user", n.deliveries[0].kind)
	assert.Equal(t, "u1", n.deliveries[0].target)
}

func TestHandleUserNotifyWithChoices(t *testing.T) {
	n := &recordingNotifier{}
	svc := &Service{Notifier: n, Log: zap.NewNop()}

	m := message(t, market.EventUserNotify, market.UserNotifyPayload{
		UserID: "u1", Content: "confirm?", Choices: []string{"confirm", "decline"},
	})
	require.NoError(t, svc.HandleEvent(context.Background(), m))

	require.Len(t, n.deliveries, 1)
	assert.Equal(t, "choice", n.deliveries[0].kind)
	assert.Equal(t, []string{"confirm", "decline"}, n.deliveries[0].choices)
}

func TestHandleChannelNotify(t *testing.T) {
	n := &recordingNotifier{}
	svc := &Service{Notifier: n, Log: zap.NewNop()}

	m := message(t, market.EventChannelNotify, market.ChannelNotifyPayload{ChannelID: "c9", Content: "summary"})
	require.NoError(t, svc.HandleEvent(context.Background(), m))

	require.Len(t, n.deliveries, 1)
	assert.Equal(t, "channel", n.deliveries[0].kind)
	assert.Equal(t, "c9", n.deliveries[0].target)
}

func TestDeliveryFailureStillCommits(t *testing.T) {
	// A blocked DM must not bubble up: the handler returns nil so the offset
	// commits and the pipeline moves on.
	n := &recordingNotifier{fail: true}
	svc := &Service{Notifier: n, Log: zap.NewNop()}

	m := message(t, market.EventUserNotify, market.UserNotifyPayload{UserID: "u1", Content: "hello"})
	assert.NoError(t, svc.HandleEvent(context.Background(), m))
}

func TestHandleGarbageEnvelope(t *testing.T) {
	svc := &Service{Notifier: &recordingNotifier{}, Log: zap.NewNop()}
	err := svc.HandleEvent(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

func TestHandleUnknownTypeIsIgnored(t *testing.T) {
	n := &recordingNotifier{}
	svc := &Service{Notifier: n, Log: zap.NewNop()}
	m := message(t, "SomethingElse", map[string]string{})
	assert.NoError(t, svc.HandleEvent(context.Background(), m))
	assert.Empty(t, n.deliveries)
}
