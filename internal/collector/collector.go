// Package collector runs the feed ingestion stage: fetch every configured
// source, persist what is new, and report counts.
package collector

import (
	"context"
	"log/slog"

	"github.com/RobinCoderZhao/newsdigest/internal/feed"
	"github.com/RobinCoderZhao/newsdigest/internal/store"
)

// Stats summarizes one collection run.
type Stats struct {
	Fetched int `json:"fetched"`
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// Collector ingests articles from a set of sources into the store.
type Collector struct {
	fetcher feed.Fetcher
	store   store.Store
	logger  *slog.Logger
}

func New(fetcher feed.Fetcher, st store.Store, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fetcher: fetcher, store: st, logger: logger}
}

// Run fetches every source and upserts the results. A source that fails to
// fetch, or an article that fails to store, is logged and skipped; the run
// itself only fails when the context is done.
func (c *Collector) Run(ctx context.Context, sources []feed.Source) (Stats, error) {
	var stats Stats

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		articles, err := c.fetcher.Fetch(ctx, src)
		if err != nil {
			c.logger.Error("feed fetch failed", "source", src.Name, "error", err)
			continue
		}
		stats.Fetched += len(articles)

		for _, a := range articles {
			res, err := c.store.Upsert(ctx, a)
			if err != nil {
				c.logger.Error("article store failed",
					"source", src.Name, "article", a.ID, "error", err)
				stats.Skipped++
				continue
			}
			if res == store.Created {
				stats.Stored++
			} else {
				stats.Skipped++
			}
		}

		c.logger.Info("source collected",
			"source", src.Name, "fetched", len(articles))
	}

	c.logger.Info("collection finished",
		"fetched", stats.Fetched, "stored", stats.Stored, "skipped", stats.Skipped)
	return stats, nil
}
