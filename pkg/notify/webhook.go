package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookConfig holds webhook configuration.
type WebhookConfig struct {
	URL     string            `yaml:"url" json:"url" env:"NOTIFICATION_PRIMARY_ENDPOINT"`
	Headers map[string]string `yaml:"headers" json:"headers"`
	// SlackBlocks wraps the message in Slack's block layout instead of the
	// plain {title, body} payload.
	SlackBlocks bool `yaml:"slack_blocks" json:"slack_blocks"`
}

// WebhookNotifier sends notifications to a webhook URL.
type WebhookNotifier struct {
	config WebhookConfig
	http   *http.Client
}

// NewWebhookNotifier creates a new webhook notifier.
func NewWebhookNotifier(cfg WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WebhookNotifier) Channel() Channel { return ChannelWebhook }

// Send posts a message to the webhook URL.
func (w *WebhookNotifier) Send(ctx context.Context, msg Message) error {
	var payload any
	if w.config.SlackBlocks {
		payload = slackBlocks(msg)
	} else {
		payload = map[string]string{
			"title":  msg.Title,
			"body":   msg.Body,
			"format": msg.Format,
			"url":    msg.URL,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", w.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// slackBlocks renders a message as a Slack header block followed by a
// markdown section.
func slackBlocks(msg Message) map[string]any {
	blocks := []map[string]any{
		{
			"type": "header",
			"text": map[string]any{"type": "plain_text", "text": msg.Title},
		},
		{"type": "divider"},
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": msg.Body},
		},
	}
	return map[string]any{"blocks": blocks}
}
