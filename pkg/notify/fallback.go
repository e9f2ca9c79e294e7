package notify

import (
	"context"
	"fmt"
	"log/slog"
)

// Via identifies which leg of a fallback chain delivered a message.
type Via string

const (
	ViaPrimary  Via = "primary"
	ViaFallback Via = "fallback"
)

// Delivery is the successful outcome of a chain send.
type Delivery struct {
	Via     Via
	Channel Channel
}

// NotificationError is returned when both the primary and the fallback channel fail.
type NotificationError struct {
	PrimaryErr  error
	FallbackErr error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("all channels failed: primary: %v; fallback: %v", e.PrimaryErr, e.FallbackErr)
}

// FallbackChain attempts delivery via a primary channel and falls back to a
// secondary channel on any failure. The fallback is optional; without one a
// primary failure is surfaced directly.
type FallbackChain struct {
	primary  Notifier
	fallback Notifier
	logger   *slog.Logger
}

// NewFallbackChain creates a chain. fallback may be nil.
func NewFallbackChain(primary, fallback Notifier) *FallbackChain {
	return &FallbackChain{
		primary:  primary,
		fallback: fallback,
		logger:   slog.Default(),
	}
}

// Send delivers the message, reporting which leg succeeded.
func (c *FallbackChain) Send(ctx context.Context, msg Message) (Delivery, error) {
	primaryErr := c.primary.Send(ctx, msg)
	if primaryErr == nil {
		return Delivery{Via: ViaPrimary, Channel: c.primary.Channel()}, nil
	}

	if c.fallback == nil {
		return Delivery{}, primaryErr
	}

	c.logger.Warn("primary notification failed, trying fallback",
		"primary", c.primary.Channel(),
		"fallback", c.fallback.Channel(),
		"error", primaryErr,
	)

	if err := c.fallback.Send(ctx, msg); err != nil {
		return Delivery{}, &NotificationError{PrimaryErr: primaryErr, FallbackErr: err}
	}
	return Delivery{Via: ViaFallback, Channel: c.fallback.Channel()}, nil
}
