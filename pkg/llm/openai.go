package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// openaiClient implements the Client interface for OpenAI-compatible APIs.
// BaseURL may point at any chat-completions endpoint, including a local stub.
type openaiClient struct {
	cfg    Config
	http   *http.Client
	apiKey string
	base   string
}

func newOpenAIClient(cfg Config) (Client, error) {
	base := "https://api.openai.com/v1"
	if cfg.BaseURL != "" {
		base = cfg.BaseURL
	}
	client := &openaiClient{
		cfg:    cfg,
		apiKey: cfg.APIKey,
		base:   base,
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	return wrapWithRetry(client, cfg.MaxRetries), nil
}

type openaiRequest struct {
	Model       string          `json:"model"`
	Messages    []openaiMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Model string `json:"model"`
}

type openaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func (c *openaiClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	messages := make([]openaiMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, openaiMessage{Role: "user", Content: req.Prompt})

	oReq := openaiRequest{
		Model:    c.cfg.Model,
		Messages: messages,
	}

	if req.MaxTokens > 0 {
		oReq.MaxTokens = req.MaxTokens
	} else if c.cfg.MaxTokens > 0 {
		oReq.MaxTokens = c.cfg.MaxTokens
	}

	if req.Temperature > 0 {
		oReq.Temperature = req.Temperature
	} else if c.cfg.Temperature > 0 {
		oReq.Temperature = c.cfg.Temperature
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.base+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		var errResp openaiErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, &APIError{StatusCode: httpResp.StatusCode, Message: errResp.Error.Message}
		}
		return nil, &APIError{StatusCode: httpResp.StatusCode, Message: string(respBody)}
	}

	var oResp openaiResponse
	if err := json.Unmarshal(respBody, &oResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(oResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	latency := time.Since(start).Milliseconds()
	return &Response{
		Content:   oResp.Choices[0].Message.Content,
		TokensIn:  oResp.Usage.PromptTokens,
		TokensOut: oResp.Usage.CompletionTokens,
		Model:     oResp.Model,
		LatencyMs: latency,
	}, nil
}

func (c *openaiClient) Close() error {
	return nil
}
