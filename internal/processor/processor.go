// Package processor runs the summarize-and-notify stage over stored articles.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/RobinCoderZhao/newsdigest/internal/notifier"
	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/internal/summarizer"
)

// Stats summarizes one processing run.
type Stats struct {
	Processed int `json:"processed"`
	Notified  int `json:"notified"`
	Failed    int `json:"failed"`
}

// Options bounds a processing run.
type Options struct {
	// BatchLimit caps how many unprocessed articles one run picks up.
	BatchLimit int `yaml:"batch_limit"`
}

// Processor drives summarization and digest delivery.
type Processor struct {
	store      store.Store
	summarizer *summarizer.Summarizer
	notifier   *notifier.Notifier
	opts       Options
	logger     *slog.Logger
}

func New(st store.Store, sum *summarizer.Summarizer, not *notifier.Notifier, opts Options, logger *slog.Logger) *Processor {
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 25
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{store: st, summarizer: sum, notifier: not, opts: opts, logger: logger}
}

// Run summarizes pending articles and delivers one digest for everything
// that is summarized but not yet notified. A summarization failure counts
// against that article only; the rest of the batch proceeds. A delivery
// failure leaves the articles pending so the next run retries notification
// without re-summarizing.
func (p *Processor) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	batch, err := p.store.ListUnprocessed(ctx, p.opts.BatchLimit)
	if err != nil {
		return stats, fmt.Errorf("list unprocessed: %w", err)
	}

	for _, a := range batch {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("processing run out of time",
				"processed", stats.Processed, "remaining", len(batch)-stats.Processed-stats.Failed)
			return stats, err
		}

		summary, err := p.summarizer.Summarize(ctx, a)
		if err != nil {
			var serr *summarizer.SummarizationError
			if errors.As(err, &serr) {
				p.logger.Error("summarization failed, skipping article",
					"article", a.ID, "title", a.Title, "error", err)
				stats.Failed++
				continue
			}
			return stats, err
		}

		if err := p.store.MarkProcessed(ctx, a.ID, summary); err != nil {
			p.logger.Error("mark processed failed",
				"article", a.ID, "error", err)
			stats.Failed++
			continue
		}
		stats.Processed++
	}

	// Deliver everything summarized but undelivered, including leftovers
	// from earlier runs whose notification failed.
	pending, err := p.store.ListPendingNotification(ctx, 0)
	if err != nil {
		return stats, fmt.Errorf("list pending notification: %w", err)
	}
	if len(pending) == 0 {
		return stats, nil
	}

	if _, err := p.notifier.NotifyDigest(ctx, pending); err != nil {
		return stats, fmt.Errorf("deliver digest: %w", err)
	}

	for _, a := range pending {
		if err := p.store.MarkNotified(ctx, a.ID); err != nil {
			p.logger.Error("mark notified failed", "article", a.ID, "error", err)
			continue
		}
		stats.Notified++
	}

	p.logger.Info("processing finished",
		"processed", stats.Processed, "notified", stats.Notified, "failed", stats.Failed)
	return stats, nil
}
