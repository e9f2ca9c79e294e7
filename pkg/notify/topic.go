package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TopicConfig holds configuration for publishing to a named topic. The topic
// endpoint is an SNS-style publish surface consumed by external subscribers.
type TopicConfig struct {
	Endpoint string `yaml:"endpoint" json:"endpoint" env:"NOTIFICATION_FALLBACK_ENDPOINT"`
	Topic    string `yaml:"topic" json:"topic" env:"NOTIFICATION_FALLBACK_TOPIC"`
}

// TopicNotifier publishes messages to a named topic.
type TopicNotifier struct {
	config TopicConfig
	http   *http.Client
}

// NewTopicNotifier creates a topic publisher.
func NewTopicNotifier(cfg TopicConfig) *TopicNotifier {
	return &TopicNotifier{
		config: cfg,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TopicNotifier) Channel() Channel { return ChannelTopic }

// Send publishes the message to the configured topic.
func (t *TopicNotifier) Send(ctx context.Context, msg Message) error {
	payload := map[string]string{
		"topic":   t.config.Topic,
		"subject": msg.Title,
		"message": msg.Body,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("publish to topic %s: %w", t.config.Topic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("topic publish returned status %d", resp.StatusCode)
	}
	return nil
}
