// Package notification delivers alarm messages to external channels
// (Telegram, generic webhooks). Every notifier implements model.Notifier
// so the watcher does not care where a channel lives.
package notification

import (
	"context"
	"log"
)

// LogNotifier writes alerts to the process log (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, channelID int64, text string) error {
	log.Printf("[notify] channel=%d %s", channelID, text)
	return nil
}
