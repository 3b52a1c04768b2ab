package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/samber/lo"

	"github.com/kovalyov-valentin/feed-sync/internal/model"
)

type ReadStateStorage struct {
	db *sqlx.DB
}

func NewReadStateStorage(db *sqlx.DB) *ReadStateStorage {
	return &ReadStateStorage{db: db}
}

// Создает unread состояние для каждого, кто подписан на ленту поста прямо сейчас.
// Первичный ключ (user_id, post_id) не дает создать дубль при повторе
func fanOut(ctx context.Context, tx *sqlx.Tx, postID int64) (int64, error) {
	res, err := tx.ExecContext(
		ctx,
		tx.Rebind(`INSERT INTO read_states (user_id, post_id)
			SELECT s.user_id, p.id FROM subscriptions s
			JOIN posts p ON p.feed_id = s.feed_id
			WHERE p.id = ?
			ON CONFLICT (user_id, post_id) DO NOTHING`),
		postID,
	)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

// SetState меняет состояние прочтения поста пользователем
func (s *ReadStateStorage) SetState(ctx context.Context, userID, postID int64, state model.State) error {
	if !state.Valid() {
		return fmt.Errorf("invalid read state %q", state)
	}

	res, err := s.db.ExecContext(
		ctx,
		s.db.Rebind(`UPDATE read_states SET state = ?, updated_at = ? WHERE user_id = ? AND post_id = ?`),
		state,
		time.Now().UTC(),
		userID,
		postID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// ReadStates возвращает состояния пользователя, свежие посты сначала.
// Пустой state - без фильтра
func (s *ReadStateStorage) ReadStates(ctx context.Context, userID int64, state model.State) ([]model.ReadState, error) {
	sb := flavorOf(s.db).NewSelectBuilder()
	sb.Select("rs.user_id", "rs.post_id", "rs.state", "rs.updated_at").
		From("read_states rs").
		Join("posts p", "p.id = rs.post_id").
		Where(sb.Equal("rs.user_id", userID))
	if state != "" {
		sb.Where(sb.Equal("rs.state", string(state)))
	}
	sb.OrderBy("p.published_date DESC", "p.id DESC")

	query, args := sb.Build()

	var states []dbReadState
	if err := s.db.SelectContext(ctx, &states, query, args...); err != nil {
		return nil, err
	}

	return lo.Map(states, func(state dbReadState, _ int) model.ReadState {
		return model.ReadState(state)
	}), nil
}

type dbReadState struct {
	UserID    int64       `db:"user_id"`
	PostID    int64       `db:"post_id"`
	State     model.State `db:"state"`
	UpdatedAt time.Time   `db:"updated_at"`
}
