package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
)

// APIError is a completion-service error carrying the HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("completion API error (%d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the error is worth retrying. Rate limits and
// server-side failures are transient; 4xx input rejections are permanent.
func (e *APIError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// retryClient wraps any Client with retry logic.
type retryClient struct {
	inner      Client
	maxRetries int
	baseDelay  time.Duration
}

// wrapWithRetry wraps a client with retry logic.
func wrapWithRetry(client Client, maxRetries int) Client {
	if maxRetries <= 1 {
		return client
	}
	return &retryClient{
		inner:      client,
		maxRetries: maxRetries,
		baseDelay:  500 * time.Millisecond,
	}
}

func (r *retryClient) Complete(ctx context.Context, req *Request) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		resp, err := r.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}

		delay := r.backoffDelay(attempt)
		slog.Warn("completion request failed, retrying",
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("max retries (%d) exceeded: %w", r.maxRetries, lastErr)
}

func (r *retryClient) Close() error {
	return r.inner.Close()
}

func (r *retryClient) backoffDelay(attempt int) time.Duration {
	delay := float64(r.baseDelay) * math.Pow(2, float64(attempt))
	maxDelay := 30 * time.Second
	if time.Duration(delay) > maxDelay {
		return maxDelay
	}
	return time.Duration(delay)
}

// IsTransient determines if an error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Transient()
	}
	errStr := err.Error()
	// Transport-level failures don't carry a status code
	for _, keyword := range []string{"timeout", "connection reset", "connection refused", "EOF"} {
		if strings.Contains(errStr, keyword) {
			return true
		}
	}
	return false
}
