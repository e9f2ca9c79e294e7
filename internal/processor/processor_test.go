package processor

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/RobinCoderZhao/newsdigest/internal/notifier"
	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/internal/summarizer"
	"github.com/RobinCoderZhao/newsdigest/pkg/llm"
	"github.com/RobinCoderZhao/newsdigest/pkg/notify"
)

// countingLLM summarizes by echoing and fails for bodies containing "POISON".
type countingLLM struct {
	calls int
}

func (c *countingLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	c.calls++
	if strings.Contains(req.Prompt, "POISON") {
		return nil, &llm.APIError{StatusCode: 400, Message: "content rejected"}
	}
	return &llm.Response{Content: "summary: " + req.Prompt[:20]}, nil
}

func (c *countingLLM) Close() error { return nil }

type chainSender struct {
	sent []notify.Message
	fail bool
}

func (s *chainSender) Send(ctx context.Context, msg notify.Message) (notify.Delivery, error) {
	if s.fail {
		return notify.Delivery{}, &notify.NotificationError{
			PrimaryErr:  errors.New("webhook 500"),
			FallbackErr: errors.New("topic unreachable"),
		}
	}
	s.sent = append(s.sent, msg)
	return notify.Delivery{Via: notify.ViaPrimary, Channel: notify.ChannelWebhook}, nil
}

func newStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLStore(store.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s store.Store, id, content string) {
	t.Helper()
	_, err := s.Upsert(context.Background(), store.Article{
		ID:            id,
		Source:        "test-feed",
		Title:         "Title " + id,
		URL:           "https://example.com/" + id,
		PublishedDate: "2024-01-0" + id[len(id)-1:] + "T00:00:00Z",
		Content:       content,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newProcessor(s store.Store, client llm.Client, sender notifier.Sender) *Processor {
	sum := summarizer.New(client, summarizer.DefaultOptions())
	not := notifier.New(sender, slog.Default())
	return New(s, sum, not, Options{BatchLimit: 25}, slog.Default())
}

func TestRun_ProcessesAndNotifies(t *testing.T) {
	s := newStore(t)
	seed(t, s, "a1", "first article body with enough text")
	seed(t, s, "a2", "second article body with enough text")

	sender := &chainSender{}
	p := newProcessor(s, &countingLLM{}, sender)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 2 || stats.Notified != 2 || stats.Failed != 0 {
		t.Errorf("stats = %+v", stats)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("expected one digest, got %d messages", len(sender.sent))
	}
	body := sender.sent[0].Body
	if !strings.Contains(body, "Title a1") || !strings.Contains(body, "Title a2") {
		t.Errorf("digest missing article titles:\n%s", body)
	}

	// Everything is settled; a second run is a no-op
	stats, err = p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if stats.Processed != 0 || stats.Notified != 0 {
		t.Errorf("second run should be a no-op, got %+v", stats)
	}
}

func TestRun_FailedArticleDoesNotBlockBatch(t *testing.T) {
	s := newStore(t)
	seed(t, s, "a1", "fine article body with enough text")
	seed(t, s, "a2", "POISON article body that the model rejects")
	seed(t, s, "a3", "another fine body with enough text")

	sender := &chainSender{}
	p := newProcessor(s, &countingLLM{}, sender)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 2 || stats.Failed != 1 || stats.Notified != 2 {
		t.Errorf("stats = %+v", stats)
	}

	// The failed article stays unprocessed for a later retry
	remaining, err := s.ListUnprocessed(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 1 || remaining[0].ID != "a2" {
		t.Errorf("expected only the failed article to remain, got %+v", remaining)
	}
}

func TestRun_EmptyContentStillProcessed(t *testing.T) {
	s := newStore(t)
	seed(t, s, "a1", "")

	sender := &chainSender{}
	llmClient := &countingLLM{}
	p := newProcessor(s, llmClient, sender)

	stats, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stats.Processed != 1 || stats.Notified != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if llmClient.calls != 0 {
		t.Errorf("empty content should not call the model, calls = %d", llmClient.calls)
	}
	if !strings.Contains(sender.sent[0].Body, summarizer.EmptyContentSummary) {
		t.Errorf("digest should carry the placeholder summary:\n%s", sender.sent[0].Body)
	}
}

// Notification failure leaves summaries intact; the next run re-delivers
// without calling the model again.
func TestRun_NotifyRetryWithoutResummarize(t *testing.T) {
	s := newStore(t)
	seed(t, s, "a1", "article body with enough text")

	llmClient := &countingLLM{}
	broken := &chainSender{fail: true}
	p := newProcessor(s, llmClient, broken)

	stats, err := p.Run(context.Background())
	if err == nil {
		t.Fatal("expected delivery failure to surface")
	}
	if stats.Processed != 1 || stats.Notified != 0 {
		t.Errorf("stats = %+v", stats)
	}
	callsAfterFirst := llmClient.calls

	healthy := &chainSender{}
	p2 := newProcessor(s, llmClient, healthy)
	stats, err = p2.Run(context.Background())
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if stats.Notified != 1 {
		t.Errorf("retry should deliver the pending article, stats = %+v", stats)
	}
	if llmClient.calls != callsAfterFirst {
		t.Errorf("retry must not re-summarize, calls went %d -> %d", callsAfterFirst, llmClient.calls)
	}
	if len(healthy.sent) != 1 || !strings.Contains(healthy.sent[0].Body, "Title a1") {
		t.Errorf("retry digest wrong: %+v", healthy.sent)
	}
}

func TestRun_DeadlineStopsBatchEarly(t *testing.T) {
	s := newStore(t)
	seed(t, s, "a1", "body text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := newProcessor(s, &countingLLM{}, &chainSender{})
	if _, err := p.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
