package storage

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// Get-or-create ключевых слов и привязка их к ленте.
// Возвращает, сколько новых привязок появилось
func attachKeywords(ctx context.Context, tx *sqlx.Tx, feedID int64, names []string) (int64, error) {
	var attached int64

	for _, name := range names {
		if _, err := tx.ExecContext(
			ctx,
			tx.Rebind(`INSERT INTO keywords (name) VALUES (?) ON CONFLICT (name) DO NOTHING`),
			name,
		); err != nil {
			return 0, err
		}

		var keywordID int64
		if err := tx.GetContext(ctx, &keywordID, tx.Rebind(`SELECT id FROM keywords WHERE name = ?`), name); err != nil {
			return 0, err
		}

		res, err := tx.ExecContext(
			ctx,
			tx.Rebind(`INSERT INTO feed_keywords (feed_id, keyword_id) VALUES (?, ?) ON CONFLICT (feed_id, keyword_id) DO NOTHING`),
			feedID,
			keywordID,
		)
		if err != nil {
			return 0, err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		attached += n
	}

	return attached, nil
}
