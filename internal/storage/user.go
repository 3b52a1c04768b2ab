package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Пользователями управляет сервис аккаунтов, здесь только то,
// что нужно для подписок
type UserStorage struct {
	db *sqlx.DB
}

func NewUserStorage(db *sqlx.DB) *UserStorage {
	return &UserStorage{db: db}
}

func (s *UserStorage) AddUser(ctx context.Context, username string) (int64, error) {
	var id int64
	if err := s.db.QueryRowxContext(
		ctx,
		s.db.Rebind(`INSERT INTO users (username) VALUES (?) RETURNING id`),
		username,
	).Scan(&id); err != nil {
		return 0, err
	}

	return id, nil
}

func (s *UserStorage) DeleteUser(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	return err
}
