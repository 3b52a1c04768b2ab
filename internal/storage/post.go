package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

type PostStorage struct {
	db *sqlx.DB
}

func NewPostStorage(db *sqlx.DB) *PostStorage {
	return &PostStorage{db: db}
}

// PostExists проверяет, сохраняли ли мы уже пост с таким slug в этой ленте
func (s *PostStorage) PostExists(ctx context.Context, feedID int64, slug string) (bool, error) {
	var exists bool
	if err := s.db.GetContext(
		ctx,
		&exists,
		s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM posts WHERE feed_id = ? AND slug = ?)`),
		feedID,
		slug,
	); err != nil {
		return false, err
	}

	return exists, nil
}

// Ingest сохраняет новый пост и в той же транзакции создает состояния
// прочтения для подписчиков ленты и привязывает ключевые слова.
// Если пост с таким (feed_id, slug) уже есть, ничего не меняется и Created = false
func (s *PostStorage) Ingest(ctx context.Context, post model.Post, keywords []string) (model.Ingestion, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return model.Ingestion{}, err
	}
	defer tx.Rollback()

	postID, created, err := insertPost(ctx, tx, post)
	if err != nil {
		return model.Ingestion{}, fmt.Errorf("insert post: %w", err)
	}
	if !created {
		return model.Ingestion{}, nil
	}

	readStates, err := fanOut(ctx, tx, postID)
	if err != nil {
		return model.Ingestion{}, fmt.Errorf("fan out post %d: %w", postID, err)
	}

	attached, err := attachKeywords(ctx, tx, post.FeedID, keywords)
	if err != nil {
		return model.Ingestion{}, fmt.Errorf("attach keywords: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return model.Ingestion{}, err
	}

	return model.Ingestion{
		PostID:     postID,
		Created:    true,
		ReadStates: readStates,
		Keywords:   attached,
	}, nil
}

// Вставка с уникальным ключом (feed_id, slug). Если строку уже вставил
// кто-то другой, RETURNING ничего не вернет
func insertPost(ctx context.Context, tx *sqlx.Tx, post model.Post) (int64, bool, error) {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	var id int64
	err := tx.QueryRowxContext(
		ctx,
		tx.Rebind(`INSERT INTO posts (feed_id, name, slug, content, url, published_date, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (feed_id, slug) DO NOTHING
			RETURNING id`),
		post.FeedID,
		post.Name,
		post.Slug,
		post.Content,
		post.URL,
		post.PublishedDate.UTC(),
		post.CreatedAt,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	return id, true, nil
}

// Последние посты ленты, новые сначала
func (s *PostStorage) PostsByFeed(ctx context.Context, feedID int64, limit int) ([]model.Post, error) {
	sb := flavorOf(s.db).NewSelectBuilder()
	sb.Select("id", "feed_id", "name", "slug", "content", "url", "published_date", "created_at").
		From("posts").
		Where(sb.Equal("feed_id", feedID)).
		OrderBy("published_date DESC", "id DESC")
	if limit > 0 {
		sb.Limit(limit)
	}

	query, args := sb.Build()

	var posts []dbPost
	if err := s.db.SelectContext(ctx, &posts, query, args...); err != nil {
		return nil, err
	}

	return lo.Map(posts, func(post dbPost, _ int) model.Post {
		return model.Post(post)
	}), nil
}

func (s *PostStorage) PostBySlug(ctx context.Context, feedID int64, slug string) (*model.Post, error) {
	sb := flavorOf(s.db).NewSelectBuilder()
	sb.Select("id", "feed_id", "name", "slug", "content", "url", "published_date", "created_at").
		From("posts").
		Where(sb.Equal("feed_id", feedID), sb.Equal("slug", slug))

	query, args := sb.Build()

	var post dbPost
	if err := s.db.GetContext(ctx, &post, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return (*model.Post)(&post), nil
}

type dbPost struct {
	ID            int64     `db:"id"`
	FeedID        int64     `db:"feed_id"`
	Name          string    `db:"name"`
	Slug          string    `db:"slug"`
	Content       string    `db:"content"`
	URL           string    `db:"url"`
	PublishedDate time.Time `db:"published_date"`
	CreatedAt     time.Time `db:"created_at"`
}
