package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>AWS Announcements</title>
    <item>
      <title>New EC2 instance family</title>
      <link>https://example.com/ec2</link>
      <description>&lt;p&gt;Faster &lt;b&gt;compute&lt;/b&gt; for everyone.&lt;/p&gt;</description>
      <pubDate>Mon, 02 Jan 2006 15:04:05 -0700</pubDate>
    </item>
    <item>
      <title>S3 price drop</title>
      <link>https://example.com/s3</link>
      <description>Cheaper storage.</description>
      <pubDate>Tue, 03 Jan 2006 10:00:00 -0700</pubDate>
    </item>
  </channel>
</rss>`

const sampleAtom = `<?xml version="1.0"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Release Notes</title>
  <entry>
    <title>v2.1 released</title>
    <link href="https://example.com/v2.1"/>
    <summary>Bug fixes.</summary>
    <updated>2024-03-01T12:00:00Z</updated>
  </entry>
</feed>`

func feedServer(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, payload)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch_RSS(t *testing.T) {
	srv := feedServer(t, sampleRSS)
	f := NewRSSFetcher(nil)

	articles, err := f.Fetch(context.Background(), Source{Name: "aws", URL: srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %d", len(articles))
	}

	a := articles[0]
	if a.Title != "New EC2 instance family" {
		t.Errorf("title = %q", a.Title)
	}
	if a.Source != "aws" {
		t.Errorf("source = %q", a.Source)
	}
	if a.ID == "" {
		t.Error("expected non-empty id")
	}
	again, err := f.Fetch(context.Background(), Source{Name: "aws", URL: srv.URL})
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if again[0].ID != a.ID {
		t.Error("id should be stable across fetches")
	}
	// Description HTML is flattened to text
	if strings.Contains(a.Content, "<") {
		t.Errorf("content contains markup: %q", a.Content)
	}
	if !strings.Contains(a.Content, "Faster compute for everyone.") {
		t.Errorf("content = %q", a.Content)
	}
	// pubDate normalized to RFC3339 UTC
	if _, err := time.Parse(time.RFC3339, a.PublishedDate); err != nil {
		t.Errorf("published_date not RFC3339: %q", a.PublishedDate)
	}
	if !strings.HasPrefix(a.PublishedDate, "2006-01-02T22:04:05") {
		t.Errorf("published_date = %q", a.PublishedDate)
	}
}

func TestFetch_Atom(t *testing.T) {
	srv := feedServer(t, sampleAtom)
	f := NewRSSFetcher(nil)

	articles, err := f.Fetch(context.Background(), Source{Name: "releases", URL: srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected 1 article, got %d", len(articles))
	}
	if articles[0].Title != "v2.1 released" {
		t.Errorf("title = %q", articles[0].Title)
	}
	if articles[0].URL != "https://example.com/v2.1" {
		t.Errorf("url = %q", articles[0].URL)
	}
	if articles[0].Content != "Bug fixes." {
		t.Errorf("content = %q", articles[0].Content)
	}
}

func TestFetch_MaxItems(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0"?><rss version="2.0"><channel><title>big</title>`)
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&sb, `<item><title>item %d</title><link>https://example.com/%d</link></item>`, i, i)
	}
	sb.WriteString(`</channel></rss>`)

	srv := feedServer(t, sb.String())
	f := NewRSSFetcher(nil, WithMaxItems(10))

	articles, err := f.Fetch(context.Background(), Source{Name: "big", URL: srv.URL})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(articles) != 10 {
		t.Errorf("expected cap at 10 items, got %d", len(articles))
	}
}

func TestFetch_UnparseableFeed(t *testing.T) {
	srv := feedServer(t, "this is not xml at all")
	f := NewRSSFetcher(nil)

	if _, err := f.Fetch(context.Background(), Source{Name: "broken", URL: srv.URL}); err == nil {
		t.Fatal("expected error for unparseable feed")
	}
}

func TestFetch_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	f := NewRSSFetcher(nil)
	if _, err := f.Fetch(context.Background(), Source{Name: "down", URL: srv.URL}); err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestParsePubDate_Fallback(t *testing.T) {
	got := parsePubDate("not a date")
	if time.Since(got) > time.Minute {
		t.Errorf("unparseable date should default to now, got %v", got)
	}
}
