package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/pkg/scraper"
)

// RSSFetcher fetches articles from any RSS/Atom feed. For each item it makes
// a best-effort attempt to retrieve the linked page and extract a readable
// body; when that fails, the feed's own description is used as content.
type RSSFetcher struct {
	client      *http.Client
	pages       scraper.Fetcher
	maxItems    int
	pageTimeout time.Duration
	logger      *slog.Logger
}

// Option configures an RSSFetcher.
type Option func(*RSSFetcher)

// WithMaxItems bounds how many items are taken per feed.
func WithMaxItems(n int) Option {
	return func(f *RSSFetcher) { f.maxItems = n }
}

// WithPageTimeout bounds each full-text page fetch.
func WithPageTimeout(d time.Duration) Option {
	return func(f *RSSFetcher) { f.pageTimeout = d }
}

// NewRSSFetcher creates a fetcher. pages may be nil to disable full-text
// enhancement.
func NewRSSFetcher(pages scraper.Fetcher, opts ...Option) *RSSFetcher {
	f := &RSSFetcher{
		client:      &http.Client{Timeout: 15 * time.Second},
		pages:       pages,
		maxItems:    10,
		pageTimeout: 10 * time.Second,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *RSSFetcher) Fetch(ctx context.Context, src Source) ([]store.Article, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", src.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "NewsDigest/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed %s: %w", src.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch feed %s: status %d", src.Name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed %s: %w", src.Name, err)
	}

	// Try RSS 2.0 first
	var rss rssFeed
	if err := xml.Unmarshal(body, &rss); err == nil && len(rss.Channel.Items) > 0 {
		return f.convertRSSItems(ctx, src, rss.Channel.Items), nil
	}

	// Try Atom
	var atom atomFeed
	if err := xml.Unmarshal(body, &atom); err == nil && len(atom.Entries) > 0 {
		return f.convertAtomEntries(ctx, src, atom.Entries), nil
	}

	return nil, fmt.Errorf("feed %s: not parseable as RSS or Atom", src.Name)
}

// RSS 2.0 types
type rssFeed struct {
	XMLName xml.Name   `xml:"rss"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title string    `xml:"title"`
	Items []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// Atom types
type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Title   string      `xml:"title"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	Title   string   `xml:"title"`
	Link    atomLink `xml:"link"`
	Summary string   `xml:"summary"`
	Updated string   `xml:"updated"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
}

func (f *RSSFetcher) convertRSSItems(ctx context.Context, src Source, items []rssItem) []store.Article {
	if len(items) > f.maxItems {
		items = items[:f.maxItems]
	}
	articles := make([]store.Article, 0, len(items))
	for _, item := range items {
		// One malformed item must not abort the rest of the feed
		if item.Title == "" && item.Link == "" {
			continue
		}
		articles = append(articles, f.buildArticle(ctx, src, item.Title, item.Link, item.Description, parsePubDate(item.PubDate)))
	}
	return articles
}

func (f *RSSFetcher) convertAtomEntries(ctx context.Context, src Source, entries []atomEntry) []store.Article {
	if len(entries) > f.maxItems {
		entries = entries[:f.maxItems]
	}
	articles := make([]store.Article, 0, len(entries))
	for _, entry := range entries {
		if entry.Title == "" && entry.Link.Href == "" {
			continue
		}
		articles = append(articles, f.buildArticle(ctx, src, entry.Title, entry.Link.Href, entry.Summary, parsePubDate(entry.Updated)))
	}
	return articles
}

func (f *RSSFetcher) buildArticle(ctx context.Context, src Source, title, link, description string, published time.Time) store.Article {
	content := f.pageContent(ctx, src, link)
	if content == "" {
		content = stripHTML(description)
	}

	return store.Article{
		ID:            store.NewID(link, src.Name, title),
		Source:        src.Name,
		Title:         strings.TrimSpace(title),
		URL:           link,
		PublishedDate: published.UTC().Format(time.RFC3339),
		Content:       content,
	}
}

// pageContent attempts the best-effort full-text enhancement. Failure is
// non-fatal and returns an empty string.
func (f *RSSFetcher) pageContent(ctx context.Context, src Source, link string) string {
	if f.pages == nil || link == "" {
		return ""
	}
	fetchCtx, cancel := context.WithTimeout(ctx, f.pageTimeout)
	defer cancel()

	result, err := f.pages.Fetch(fetchCtx, link, &scraper.FetchOptions{Timeout: f.pageTimeout})
	if err != nil {
		f.logger.Warn("full-text extraction failed, using feed description",
			"source", src.Name, "url", link, "error", err)
		return ""
	}
	return result.CleanText
}

// stripHTML flattens an HTML feed description to plain text.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(doc.Text())
}

// parsePubDate tries the date formats feeds use in the wild. Items without a
// parseable date sort as freshly published.
func parsePubDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now()
}
