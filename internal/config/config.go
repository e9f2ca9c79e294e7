// Package config assembles the application configuration: feed sources,
// storage, model, summarization, notification channels, and run bounds.
package config

import (
	"fmt"
	"time"

	"github.com/RobinCoderZhao/newsdigest/internal/feed"
	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/internal/summarizer"
	"github.com/RobinCoderZhao/newsdigest/pkg/config"
	"github.com/RobinCoderZhao/newsdigest/pkg/llm"
	"github.com/RobinCoderZhao/newsdigest/pkg/notify"
)

// Config is the full application configuration.
type Config struct {
	Sources []feed.Source      `yaml:"sources"`
	Storage store.Config       `yaml:"storage"`
	LLM     llm.Config         `yaml:"llm"`
	Summary summarizer.Options `yaml:"summary"`

	Notify NotifyConfig `yaml:"notify"`

	Collect CollectConfig `yaml:"collect"`
	Process ProcessConfig `yaml:"process"`
	Server  ServerConfig  `yaml:"server"`
}

// NotifyConfig selects the primary channel and configures each channel plus
// the topic fallback.
type NotifyConfig struct {
	// Primary picks the first-try channel: "webhook", "email", or "telegram".
	Primary  string                `yaml:"primary" env:"NOTIFICATION_PRIMARY_CHANNEL"`
	Webhook  notify.WebhookConfig  `yaml:"webhook"`
	Email    notify.EmailConfig    `yaml:"email"`
	Telegram notify.TelegramConfig `yaml:"telegram"`
	Topic    notify.TopicConfig    `yaml:"topic"`
}

// CollectConfig bounds the collection stage.
type CollectConfig struct {
	MaxItemsPerFeed int           `yaml:"max_items_per_feed" env:"COLLECT_MAX_ITEMS"`
	PageTimeout     time.Duration `yaml:"page_timeout" env:"COLLECT_PAGE_TIMEOUT"`
	Interval        time.Duration `yaml:"interval" env:"COLLECT_INTERVAL"`
}

// ProcessConfig bounds the processing stage.
type ProcessConfig struct {
	BatchLimit  int           `yaml:"batch_limit" env:"PROCESS_BATCH_LIMIT"`
	AsyncBudget time.Duration `yaml:"async_budget" env:"PROCESS_ASYNC_BUDGET"`
	Interval    time.Duration `yaml:"interval" env:"PROCESS_INTERVAL"`
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"SERVER_ADDR"`
}

// Default returns the stock configuration. Env overrides and the optional
// YAML file layer on top of these values.
func Default() Config {
	return Config{
		Storage: store.Config{Type: store.TypeDocument, Driver: "sqlite", DSN: "newsdigest.db"},
		LLM:     llm.DefaultConfig(),
		Summary: summarizer.DefaultOptions(),
		Notify:  NotifyConfig{Primary: "webhook"},
		Collect: CollectConfig{
			MaxItemsPerFeed: 10,
			PageTimeout:     10 * time.Second,
			Interval:        time.Hour,
		},
		Process: ProcessConfig{
			BatchLimit:  25,
			AsyncBudget: 10 * time.Minute,
			Interval:    time.Hour,
		},
		Server: ServerConfig{Addr: ":8080"},
	}
}

// Load merges the optional YAML file at path over the defaults, then applies
// environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if err := config.LoadOrDefault(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// BuildNotifier constructs the primary channel selected by cfg and chains the
// topic fallback behind it when a fallback topic is configured.
func (c NotifyConfig) BuildNotifier() (*notify.FallbackChain, error) {
	var primary notify.Notifier
	switch c.Primary {
	case "webhook", "":
		primary = notify.NewWebhookNotifier(c.Webhook)
	case "email":
		primary = notify.NewEmailNotifier(c.Email)
	case "telegram":
		primary = notify.NewTelegramNotifier(c.Telegram)
	default:
		return nil, fmt.Errorf("unknown primary notification channel: %s", c.Primary)
	}

	var fallback notify.Notifier
	if c.Topic.Endpoint != "" {
		fallback = notify.NewTopicNotifier(c.Topic)
	}
	return notify.NewFallbackChain(primary, fallback), nil
}
