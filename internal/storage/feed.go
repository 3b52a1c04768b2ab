package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

type FeedStorage struct {
	db *sqlx.DB
}

func NewFeedStorage(db *sqlx.DB) *FeedStorage {
	return &FeedStorage{db: db}
}

// Список всех лент. Проход синхронизации берет его один раз в начале
func (s *FeedStorage) Feeds(ctx context.Context) ([]model.Feed, error) {
	var feeds []dbFeed
	if err := s.db.SelectContext(ctx, &feeds, `SELECT * FROM feeds ORDER BY id`); err != nil {
		return nil, err
	}

	return lo.Map(feeds, func(feed dbFeed, _ int) model.Feed {
		return model.Feed(feed)
	}), nil
}

func (s *FeedStorage) FeedByID(ctx context.Context, id int64) (*model.Feed, error) {
	return s.getFeed(ctx, `SELECT * FROM feeds WHERE id = ?`, id)
}

func (s *FeedStorage) FeedByURL(ctx context.Context, url string) (*model.Feed, error) {
	return s.getFeed(ctx, `SELECT * FROM feeds WHERE url = ?`, url)
}

func (s *FeedStorage) getFeed(ctx context.Context, query string, args ...any) (*model.Feed, error) {
	var feed dbFeed
	if err := s.db.GetContext(ctx, &feed, s.db.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return (*model.Feed)(&feed), nil
}

// Add добавляет ленту и возвращает ее id
func (s *FeedStorage) Add(ctx context.Context, feed model.Feed) (int64, error) {
	if feed.PublicationFrequency == "" {
		feed.PublicationFrequency = model.Monthly
	}
	if feed.CreatedAt.IsZero() {
		feed.CreatedAt = time.Now().UTC()
	}

	var id int64
	row := s.db.QueryRowxContext(
		ctx,
		s.db.Rebind(`INSERT INTO feeds (name, slug, url, publication_frequency, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		feed.Name,
		feed.Slug,
		feed.URL,
		feed.PublicationFrequency,
		feed.CreatedAt,
	)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

// Delete удаляет ленту вместе с постами, подписками и состояниями прочтения
func (s *FeedStorage) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM feeds WHERE id = ?`), id); err != nil {
		return err
	}

	return nil
}

// Ключевые слова ленты по алфавиту
func (s *FeedStorage) Keywords(ctx context.Context, feedID int64) ([]model.Keyword, error) {
	var keywords []dbKeyword
	if err := s.db.SelectContext(
		ctx,
		&keywords,
		s.db.Rebind(`SELECT k.id, k.name FROM keywords k JOIN feed_keywords fk ON fk.keyword_id = k.id WHERE fk.feed_id = ? ORDER BY k.name`),
		feedID,
	); err != nil {
		return nil, err
	}

	return lo.Map(keywords, func(keyword dbKeyword, _ int) model.Keyword {
		return model.Keyword(keyword)
	}), nil
}

// Ленты, у которых есть ключевое слово с таким именем (без учета регистра)
func (s *FeedStorage) FeedsByKeyword(ctx context.Context, name string) ([]model.Feed, error) {
	var feeds []dbFeed
	if err := s.db.SelectContext(
		ctx,
		&feeds,
		s.db.Rebind(`SELECT f.* FROM feeds f
			JOIN feed_keywords fk ON fk.feed_id = f.id
			JOIN keywords k ON k.id = fk.keyword_id
			WHERE LOWER(k.name) = LOWER(?)
			ORDER BY f.id`),
		name,
	); err != nil {
		return nil, err
	}

	return lo.Map(feeds, func(feed dbFeed, _ int) model.Feed {
		return model.Feed(feed)
	}), nil
}

type dbFeed struct {
	ID                   int64           `db:"id"`
	Name                 string          `db:"name"`
	Slug                 string          `db:"slug"`
	URL                  string          `db:"url"`
	PublicationFrequency model.Frequency `db:"publication_frequency"`
	CreatedAt            time.Time       `db:"created_at"`
}

type dbKeyword struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}
