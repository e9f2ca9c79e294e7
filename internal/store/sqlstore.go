package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Schema is the document-store schema. The secondary index serves the
// ordered unprocessed/pending queries.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
    id             TEXT PRIMARY KEY,
    source         TEXT NOT NULL,
    title          TEXT NOT NULL,
    url            TEXT,
    published_date TEXT NOT NULL,
    content        TEXT,
    summary        TEXT,
    processed      BOOLEAN NOT NULL DEFAULT FALSE,
    notified       BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_articles_processed ON articles(processed, published_date);
CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source, published_date);
`

// SQLStore is the document/record backend over sqlite or postgres.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
}

// NewSQLStore opens the database, initializes the schema, and returns the
// store. The placeholder format follows the driver.
func NewSQLStore(cfg Config) (*SQLStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "sqlite"
	}

	var placeholder sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		placeholder = sq.Dollar
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite" {
		// WAL mode for better concurrent read performance
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func (s *SQLStore) Upsert(ctx context.Context, a Article) (UpsertResult, error) {
	if a.CreatedAt == "" {
		a.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	query, args, err := s.builder.
		Insert("articles").
		Columns("id", "source", "title", "url", "published_date", "content", "summary", "processed", "notified", "created_at").
		Values(a.ID, a.Source, a.Title, a.URL, a.PublishedDate, a.Content, a.Summary, a.Processed, a.Notified, a.CreatedAt).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
	}
	affected, _ := result.RowsAffected()
	if affected > 0 {
		return Created, nil
	}

	// Existing record: backfill content only when the stored copy is empty.
	if a.Content != "" {
		query, args, err := s.builder.
			Update("articles").
			Set("content", a.Content).
			Where(sq.Eq{"id": a.ID}).
			Where(sq.Or{sq.Eq{"content": ""}, sq.Eq{"content": nil}}).
			ToSql()
		if err != nil {
			return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
		}
		if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
			return AlreadyExisted, &StorageError{Op: "upsert", Err: err}
		}
	}
	return AlreadyExisted, nil
}

func (s *SQLStore) ListUnprocessed(ctx context.Context, limit int) ([]Article, error) {
	return s.list(ctx, sq.Eq{"processed": false}, limit)
}

func (s *SQLStore) ListPendingNotification(ctx context.Context, limit int) ([]Article, error) {
	return s.list(ctx, sq.And{sq.Eq{"processed": true}, sq.Eq{"notified": false}}, limit)
}

func (s *SQLStore) list(ctx context.Context, pred sq.Sqlizer, limit int) ([]Article, error) {
	b := s.builder.
		Select("id", "source", "title", "url", "published_date", "content", "summary", "processed", "notified", "created_at").
		From("articles").
		Where(pred).
		OrderBy("published_date ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	defer rows.Close()

	var articles []Article
	for rows.Next() {
		var a Article
		var url, content, summary sql.NullString
		if err := rows.Scan(&a.ID, &a.Source, &a.Title, &url, &a.PublishedDate, &content, &summary, &a.Processed, &a.Notified, &a.CreatedAt); err != nil {
			return nil, &StorageError{Op: "list", Err: err}
		}
		a.URL = url.String
		a.Content = content.String
		a.Summary = summary.String
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return articles, nil
}

func (s *SQLStore) MarkProcessed(ctx context.Context, id, summary string) error {
	query, args, err := s.builder.
		Update("articles").
		Set("summary", summary).
		Set("processed", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return &StorageError{Op: "mark_processed", Err: err}
	}
	return s.exec(ctx, "mark_processed", query, args)
}

func (s *SQLStore) MarkNotified(ctx context.Context, id string) error {
	query, args, err := s.builder.
		Update("articles").
		Set("notified", true).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return &StorageError{Op: "mark_notified", Err: err}
	}
	return s.exec(ctx, "mark_notified", query, args)
}

func (s *SQLStore) exec(ctx context.Context, op, query string, args []any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return &StorageError{Op: op, Err: err}
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
