// Package feed retrieves and parses syndication feeds into article candidates.
package feed

import (
	"context"

	"github.com/RobinCoderZhao/newsdigest/internal/store"
)

// Source describes one configured feed.
type Source struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// Fetcher retrieves article candidates from a source. A fresh call re-reads
// the feed from scratch; deduplication happens downstream at the store.
type Fetcher interface {
	Fetch(ctx context.Context, src Source) ([]store.Article, error)
}
