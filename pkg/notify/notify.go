// Package notify provides notification delivery channels (webhook, topic
// publish, email, Telegram) and a primary/fallback delivery chain.
package notify

import (
	"context"
)

// Channel represents a notification channel type.
type Channel string

const (
	ChannelWebhook  Channel = "webhook"
	ChannelTopic    Channel = "topic"
	ChannelEmail    Channel = "email"
	ChannelTelegram Channel = "telegram"
)

// Message represents a notification message.
type Message struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	HTMLBody string `json:"html_body,omitempty"` // Rich HTML for email
	Format   string `json:"format"`              // "markdown", "html", "plain"
	URL      string `json:"url,omitempty"`
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
	Channel() Channel
}
