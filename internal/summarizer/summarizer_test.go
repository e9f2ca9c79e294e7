package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/pkg/llm"
)

type fakeLLM struct {
	response string
	err      error
	lastReq  *llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.response}, nil
}

func (f *fakeLLM) Close() error { return nil }

func article(content string) store.Article {
	return store.Article{ID: "a1", Title: "Big News", Content: content}
}

func TestSummarize_EmptyContent(t *testing.T) {
	client := &fakeLLM{response: "should not be called"}
	s := New(client, DefaultOptions())

	got, err := s.Summarize(context.Background(), article("   "))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if got != EmptyContentSummary {
		t.Errorf("got %q, want sentinel summary", got)
	}
	if client.lastReq != nil {
		t.Error("model should not be called for empty content")
	}
}

func TestSummarize_BoundsPromptLength(t *testing.T) {
	client := &fakeLLM{response: "short summary"}
	s := New(client, DefaultOptions())

	long := strings.Repeat("x", maxContentChars*3)
	if _, err := s.Summarize(context.Background(), article(long)); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(client.lastReq.Prompt) > maxContentChars+500 {
		t.Errorf("prompt length %d exceeds content bound", len(client.lastReq.Prompt))
	}
}

func TestSummarize_Language(t *testing.T) {
	client := &fakeLLM{response: "要約"}
	s := New(client, Options{Language: "ja", Sentences: 3})

	if _, err := s.Summarize(context.Background(), article("本文")); err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if !strings.Contains(client.lastReq.Prompt, "日本語で要約") {
		t.Errorf("expected Japanese prompt, got %q", client.lastReq.Prompt)
	}
}

func TestSummarize_ModelFailure(t *testing.T) {
	client := &fakeLLM{err: errors.New("model unavailable")}
	s := New(client, DefaultOptions())

	_, err := s.Summarize(context.Background(), article("body"))
	var serr *SummarizationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SummarizationError, got %v", err)
	}
	if serr.ArticleID != "a1" {
		t.Errorf("error should carry the article id, got %q", serr.ArticleID)
	}
}

func TestSummarize_TruncatesLongOutput(t *testing.T) {
	client := &fakeLLM{response: strings.Repeat("word ", 2000)}
	s := New(client, DefaultOptions())

	got, err := s.Summarize(context.Background(), article("body"))
	if err != nil {
		t.Fatalf("summarize: %v", err)
	}
	if len(got) > maxSummaryChars+10 {
		t.Errorf("summary length %d exceeds cap", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated summary should end with ellipsis")
	}
}

// Transient provider errors are retried inside the client, so one article
// summarization survives two failures when the retry budget allows three
// attempts.
func TestSummarize_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "recovered summary"}},
			},
		})
	}))
	defer srv.Close()

	cfg := llm.DefaultConfig()
	cfg.Model = "test-model"
	cfg.APIKey = "test"
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 3

	client, err := llm.NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	defer client.Close()

	s := New(client, DefaultOptions())
	got, err := s.Summarize(context.Background(), article("body text"))
	if err != nil {
		t.Fatalf("summarize should survive transient failures: %v", err)
	}
	if got != "recovered summary" {
		t.Errorf("summary = %q", got)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}
