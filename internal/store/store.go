// Package store persists articles behind a backend-neutral contract. Two
// backends implement it: a SQL document store (sqlite or postgres) and a
// blob store keeping one JSON object per article.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Article is the unit of ingestion, summarization, and notification.
// Source, URL, and PublishedDate are immutable once created; only Content
// (backfilled when empty), Summary, Processed, and Notified mutate.
type Article struct {
	ID            string `json:"id"`
	Source        string `json:"source"`
	Title         string `json:"title"`
	URL           string `json:"url"`
	PublishedDate string `json:"published_date"` // ISO-8601
	Content       string `json:"content"`
	Summary       string `json:"summary,omitempty"`
	Processed     bool   `json:"processed"`
	Notified      bool   `json:"notified"`
	CreatedAt     string `json:"created_at"`
}

// NewID derives the stable idempotency key for an article. The key is the
// hash of the article URL, or of source+title when no URL is available, so
// repeated collection runs map a feed item to the same identity.
func NewID(url, source, title string) string {
	input := url
	if input == "" {
		input = source + "|" + title
	}
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:16])
}

// UpsertResult reports whether an upsert created a new record.
type UpsertResult int

const (
	Created UpsertResult = iota
	AlreadyExisted
)

func (r UpsertResult) String() string {
	if r == Created {
		return "created"
	}
	return "already_existed"
}

// ErrNotFound is returned by mark operations for unknown article ids.
var ErrNotFound = errors.New("article not found")

// StorageError wraps a backend I/O failure. It aborts the current article's
// operation only; callers log it and continue with the next item.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Store is the article persistence contract shared by both backends.
type Store interface {
	// Upsert inserts the article if its id is unseen. Re-inserting an
	// existing id never overwrites summary, processed, or notified state;
	// content is backfilled only when the stored copy is empty.
	Upsert(ctx context.Context, a Article) (UpsertResult, error)

	// ListUnprocessed returns up to limit articles with processed=false,
	// oldest published first.
	ListUnprocessed(ctx context.Context, limit int) ([]Article, error)

	// ListPendingNotification returns up to limit articles that have been
	// summarized but not yet delivered, oldest published first.
	ListPendingNotification(ctx context.Context, limit int) ([]Article, error)

	// MarkProcessed records the summary and flips processed. Returns
	// ErrNotFound for an unknown id.
	MarkProcessed(ctx context.Context, id, summary string) error

	// MarkNotified flips notified. Returns ErrNotFound for an unknown id.
	MarkNotified(ctx context.Context, id string) error

	Close() error
}

// Type selects the physical backend.
type Type string

const (
	TypeDocument Type = "document"
	TypeBlob     Type = "blob"
)

// Config holds storage configuration. Driver and DSN apply to the document
// backend, Path to the blob backend.
type Config struct {
	Type   Type   `yaml:"type" env:"STORAGE_TYPE"`
	Driver string `yaml:"driver" env:"STORAGE_DRIVER"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn" env:"STORAGE_DSN"`
	Path   string `yaml:"path" env:"STORAGE_PATH"`
}

// New creates the configured backend. Both expose the identical Store
// contract; callers never branch on the backend type.
func New(cfg Config) (Store, error) {
	switch cfg.Type {
	case TypeDocument, "":
		return NewSQLStore(cfg)
	case TypeBlob:
		return NewBlobStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
