package storage

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type SubscriptionStorage struct {
	db *sqlx.DB
}

func NewSubscriptionStorage(db *sqlx.DB) *SubscriptionStorage {
	return &SubscriptionStorage{db: db}
}

// Subscribe подписывает пользователя на ленту и создает unread состояния
// для уже сохраненных постов этой ленты. Повторная подписка ничего не меняет
func (s *SubscriptionStorage) Subscribe(ctx context.Context, userID, feedID int64) (bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(
		ctx,
		tx.Rebind(`INSERT INTO subscriptions (user_id, feed_id, created_at) VALUES (?, ?, ?) ON CONFLICT (user_id, feed_id) DO NOTHING`),
		userID,
		feedID,
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	created, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if created == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(
		ctx,
		tx.Rebind(`INSERT INTO read_states (user_id, post_id)
			SELECT s.user_id, p.id FROM subscriptions s
			JOIN posts p ON p.feed_id = s.feed_id
			WHERE s.user_id = ? AND s.feed_id = ?
			ON CONFLICT (user_id, post_id) DO NOTHING`),
		userID,
		feedID,
	); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// Unsubscribe удаляет подписку и состояния прочтения пользователя по постам ленты
func (s *SubscriptionStorage) Unsubscribe(ctx context.Context, userID, feedID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(
		ctx,
		tx.Rebind(`DELETE FROM read_states WHERE user_id = ? AND post_id IN (SELECT id FROM posts WHERE feed_id = ?)`),
		userID,
		feedID,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(
		ctx,
		tx.Rebind(`DELETE FROM subscriptions WHERE user_id = ? AND feed_id = ?`),
		userID,
		feedID,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// Subscribers - id пользователей, подписанных на ленту
func (s *SubscriptionStorage) Subscribers(ctx context.Context, feedID int64) ([]int64, error) {
	var ids []int64
	if err := s.db.SelectContext(
		ctx,
		&ids,
		s.db.Rebind(`SELECT user_id FROM subscriptions WHERE feed_id = ? ORDER BY user_id`),
		feedID,
	); err != nil {
		return nil, err
	}

	return ids, nil
}
