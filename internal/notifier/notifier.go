// Package notifier formats summarized articles into a digest and delivers it
// through a fallback chain of channels.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/pkg/notify"
)

// maxSummaryChars keeps each entry within what chat webhooks accept per block.
const maxSummaryChars = 2900

// Sender is satisfied by notify.FallbackChain and by single-channel stubs.
type Sender interface {
	Send(ctx context.Context, msg notify.Message) (notify.Delivery, error)
}

// Notifier delivers article digests.
type Notifier struct {
	sender Sender
	logger *slog.Logger
	now    func() time.Time
}

func New(sender Sender, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{sender: sender, logger: logger, now: time.Now}
}

// NotifyDigest formats the articles into one digest message and sends it.
// An empty batch is a no-op.
func (n *Notifier) NotifyDigest(ctx context.Context, articles []store.Article) (notify.Delivery, error) {
	if len(articles) == 0 {
		return notify.Delivery{}, nil
	}

	title := fmt.Sprintf("News Summary - %s", n.now().UTC().Format("2006-01-02"))
	msg := notify.Message{
		Title:  title,
		Body:   FormatDigest(articles),
		Format: "text",
	}

	delivery, err := n.sender.Send(ctx, msg)
	if err != nil {
		return notify.Delivery{}, err
	}

	n.logger.Info("digest delivered",
		"articles", len(articles), "via", delivery.Via, "channel", delivery.Channel)
	return delivery, nil
}

// FormatDigest renders the plain-text digest body: one block per article
// with its title, source, summary, and link.
func FormatDigest(articles []store.Article) string {
	var sb strings.Builder
	for i, a := range articles {
		if i > 0 {
			sb.WriteString("\n\n---\n\n")
		}
		sb.WriteString(a.Title)
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "Source: %s\n\n", a.Source)
		sb.WriteString(truncate(a.Summary, maxSummaryChars))
		if a.URL != "" {
			fmt.Fprintf(&sb, "\n\nLink: %s", a.URL)
		}
	}
	return sb.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
