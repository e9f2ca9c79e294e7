package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BlobStore keeps one JSON object per article under
// <root>/articles/<source>/<id>.json. Listing scans the whole prefix, which
// is acceptable only at the low volumes this pipeline handles.
type BlobStore struct {
	root string
}

// NewBlobStore creates the backing directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	if root == "" {
		return nil, fmt.Errorf("blob store path is required")
	}
	if err := os.MkdirAll(filepath.Join(root, "articles"), 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &BlobStore{root: root}, nil
}

func (b *BlobStore) key(source, id string) string {
	// Source names can contain path-hostile characters
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, source)
	return filepath.Join(b.root, "articles", safe, id+".json")
}

// find locates an article object by id alone, scanning across sources.
func (b *BlobStore) find(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(b.root, "articles", "*", id+".json"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", os.ErrNotExist
	}
	return matches[0], nil
}

func (b *BlobStore) read(path string) (Article, error) {
	var a Article
	data, err := os.ReadFile(path)
	if err != nil {
		return a, err
	}
	if err := json.Unmarshal(data, &a); err != nil {
		return a, err
	}
	return a, nil
}

func (b *BlobStore) write(a Article) error {
	path := b.key(a.Source, a.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(a)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func (b *BlobStore) Upsert(ctx context.Context, a Article) (UpsertResult, error) {
	if err := ctx.Err(); err != nil {
		return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
	}
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	path, err := b.find(a.ID)
	if err == nil {
		existing, err := b.read(path)
		if err != nil {
			return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
		}
		// Backfill content only; everything else stays as stored.
		if existing.Content == "" && a.Content != "" {
			existing.Content = a.Content
			if err := b.write(existing); err != nil {
				return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
			}
		}
		return AlreadyExisted, nil
	}
	if !os.IsNotExist(err) {
		return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
	}

	if err := b.write(a); err != nil {
		return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
	}
	return Created, nil
}

func (b *BlobStore) ListUnprocessed(ctx context.Context, limit int) ([]Article, error) {
	return b.list(ctx, func(a Article) bool { return !a.Processed }, limit)
}

func (b *BlobStore) ListPendingNotification(ctx context.Context, limit int) ([]Article, error) {
	return b.list(ctx, func(a Article) bool { return a.Processed && !a.Notified }, limit)
}

func (b *BlobStore) list(ctx context.Context, keep func(Article) bool, limit int) ([]Article, error) {
	matches, err := filepath.Glob(filepath.Join(b.root, "articles", "*", "*.json"))
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}

	var articles []Article
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		a, err := b.read(path)
		if err != nil {
			// A single corrupt object must not abort the batch
			continue
		}
		if keep(a) {
			articles = append(articles, a)
		}
	}

	sort.Slice(articles, func(i, j int) bool {
		return articles[i].PublishedDate < articles[j].PublishedDate
	})
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	return articles, nil
}

func (b *BlobStore) MarkProcessed(ctx context.Context, id, summary string) error {
	return b.update(ctx, "mark_processed", id, func(a *Article) {
		a.Summary = summary
		a.Processed = true
	})
}

func (b *BlobStore) MarkNotified(ctx context.Context, id string) error {
	return b.update(ctx, "mark_notified", id, func(a *Article) {
		a.Notified = true
	})
}

func (b *BlobStore) update(ctx context.Context, op, id string, mutate func(*Article)) error {
	if err := ctx.Err(); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	path, err := b.find(id)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return &StorageError{Op: op, Err: err}
	}
	a, err := b.read(path)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	mutate(&a)
	if err := b.write(a); err != nil {
		return &StorageError{Op: op, Err: err}
	}
	return nil
}

func (b *BlobStore) Close() error { return nil }
