package notify

import (
	"context"

	"go.uber.org/zap"
)

// Notifier is the chat-platform delivery boundary. Implementations report
// delivery with a boolean and never return an error: an unreachable or
// permission-blocked recipient must not fail the pipeline.
type Notifier interface {
	NotifyUser(ctx context.Context, userID, content string) bool
	NotifyChannel(ctx context.Context, channelID, content string) bool
	// PostInteractiveChoice renders a prompt with buttons. The selected
	// choice comes back through the bot's command surface, not through this
	// call.
	PostInteractiveChoice(ctx context.Context, userID, content string, choices []string) bool
}

// LogNotifier writes deliveries to the log. It stands in for the real chat
// adapter in local runs and tests.
type LogNotifier struct {
	Log *zap.Logger
}

func (n *LogNotifier) NotifyUser(ctx context.Context, userID, content string) bool {
	n.Log.Info("DM", zap.String("user", userID), zap.String("content", content))
	return true
}

func (n *LogNotifier) NotifyChannel(ctx context.Context, channelID, content string) bool {
	n.Log.Info("channel post", zap.String("channel", channelID), zap.String("content", content))
	return true
}

func (n *LogNotifier) PostInteractiveChoice(ctx context.Context, userID, content string, choices []string) bool {
	n.Log.Info("interactive prompt", zap.String("user", userID), zap.String("content", content), zap.Strings("choices", choices))
	return true
}
