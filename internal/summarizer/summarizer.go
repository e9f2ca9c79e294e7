// Package summarizer turns article bodies into short summaries via an LLM.
package summarizer

import (
	"context"
	"fmt"
	"strings"

	"github.com/RobinCoderZhao/newsdigest/internal/store"
	"github.com/RobinCoderZhao/newsdigest/pkg/llm"
)

// EmptyContentSummary is returned for articles that carry no body at all, so
// the pipeline can still mark them processed and notify the headline.
const EmptyContentSummary = "No content available for summarization."

// maxContentChars bounds the prompt so a single oversized article cannot
// blow the model's context window or the cost budget.
const maxContentChars = 8000

// maxSummaryChars caps what we persist; anything longer is cut at a word
// boundary with an ellipsis.
const maxSummaryChars = 4000

// SummarizationError marks a model failure for one article. The processor
// counts it against that article only and moves on.
type SummarizationError struct {
	ArticleID string
	Err       error
}

func (e *SummarizationError) Error() string {
	return fmt.Sprintf("summarize article %s: %v", e.ArticleID, e.Err)
}

func (e *SummarizationError) Unwrap() error { return e.Err }

// Options configures summarization output.
type Options struct {
	// Language selects the output language of summaries ("en" or "ja").
	Language string `yaml:"language" env:"OUTPUT_LANGUAGE"`
	// Sentences is the requested summary length.
	Sentences int `yaml:"sentences"`
}

// DefaultOptions returns the stock English three-sentence setup.
func DefaultOptions() Options {
	return Options{Language: "en", Sentences: 3}
}

// Summarizer produces summaries through an llm.Client.
type Summarizer struct {
	client llm.Client
	opts   Options
}

func New(client llm.Client, opts Options) *Summarizer {
	if opts.Language == "" {
		opts.Language = "en"
	}
	if opts.Sentences <= 0 {
		opts.Sentences = 3
	}
	return &Summarizer{client: client, opts: opts}
}

// Summarize returns a summary for the article. Empty content short-circuits
// to EmptyContentSummary without a model call.
func (s *Summarizer) Summarize(ctx context.Context, a store.Article) (string, error) {
	content := strings.TrimSpace(a.Content)
	if content == "" {
		return EmptyContentSummary, nil
	}
	if len(content) > maxContentChars {
		content = content[:maxContentChars]
	}

	resp, err := s.client.Complete(ctx, &llm.Request{
		System: systemPrompt(s.opts.Language),
		Prompt: userPrompt(s.opts.Language, s.opts.Sentences, a.Title, content),
	})
	if err != nil {
		return "", &SummarizationError{ArticleID: a.ID, Err: err}
	}

	summary := strings.TrimSpace(resp.Content)
	if summary == "" {
		return "", &SummarizationError{ArticleID: a.ID, Err: fmt.Errorf("model returned empty summary")}
	}
	return truncate(summary, maxSummaryChars), nil
}

func systemPrompt(language string) string {
	if language == "ja" {
		return "あなたはニュース記事を要約するアシスタントです。正確で簡潔な日本語の要約を作成してください。"
	}
	return "You are an assistant that summarizes news articles. Produce accurate, concise summaries."
}

func userPrompt(language string, sentences int, title, content string) string {
	if language == "ja" {
		return fmt.Sprintf("以下のニュース記事を%d文程度の日本語で要約してください。\n\nタイトル: %s\n\n本文:\n%s", sentences, title, content)
	}
	return fmt.Sprintf("Summarize the following news article in about %d sentences.\n\nTitle: %s\n\nBody:\n%s", sentences, title, content)
}

// truncate cuts s at the last space before max and appends an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	if i := strings.LastIndex(cut, " "); i > max/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
