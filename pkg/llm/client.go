// Package llm provides a client for OpenAI-compatible text completion services
// with automatic retries and transient/permanent error classification.
package llm

import (
	"context"
	"fmt"
	"time"
)

// Config holds configuration for a completion client.
type Config struct {
	Model       string        `yaml:"model" json:"model" env:"COMPLETION_MODEL_ID"`
	APIKey      string        `yaml:"api_key" json:"api_key" env:"COMPLETION_API_KEY"`
	BaseURL     string        `yaml:"base_url" json:"base_url" env:"COMPLETION_BASE_URL"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	MaxTokens   int           `yaml:"max_tokens" json:"max_tokens"`
	Temperature float64       `yaml:"temperature" json:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Model:       "gpt-4o-mini",
		MaxRetries:  3,
		Timeout:     60 * time.Second,
		MaxTokens:   1000,
		Temperature: 0.3,
	}
}

// Client is the interface for completion-service interactions.
type Client interface {
	// Complete sends a prompt and returns the completion.
	Complete(ctx context.Context, req *Request) (*Response, error)

	// Close releases any resources held by the client.
	Close() error
}

// Request holds the parameters for a completion request.
type Request struct {
	System      string  `json:"system,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Response holds the result of a completion.
type Response struct {
	Content   string `json:"content"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	Model     string `json:"model"`
	LatencyMs int64  `json:"latency_ms"`
}

// NewClient creates a completion client based on the provided config.
func NewClient(cfg Config) (Client, error) {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("completion model id is required")
	}
	return newOpenAIClient(cfg)
}
