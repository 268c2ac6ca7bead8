package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresMarkRepo はPostgreSQLを使用した回答・お気に入り・除外の書き込みリポジトリ。
type PostgresMarkRepo struct {
	db *sql.DB
}

// NewPostgresMarkRepo はPostgresMarkRepoを生成する。
func NewPostgresMarkRepo(db *sql.DB) *PostgresMarkRepo {
	return &PostgresMarkRepo{db: db}
}

// InsertAnswer は回答を追記する。既存の回答は更新・削除しない。
func (r *PostgresMarkRepo) InsertAnswer(ctx context.Context, kind model.Kind, answer *model.Answer) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(
			`INSERT INTO %s (id, user_id, %s, answer)
			 VALUES ($1, $2, $3, $4)
			 RETURNING seq, created_at`, t.answers, t.itemCol),
		answer.ID, answer.UserID, answer.ItemID, string(answer.Label),
	).Scan(&answer.Seq, &answer.CreatedAt)
	if err != nil {
		return fmt.Errorf("回答の保存に失敗しました: %w", err)
	}
	return nil
}

// SetFavorite はお気に入りマークを冪等に付与・解除する。
// 付与は ON CONFLICT DO NOTHING、解除は存在しなくてもエラーにしない。
func (r *PostgresMarkRepo) SetFavorite(ctx context.Context, kind model.Kind, userID, itemID string, favorite bool) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	var query string
	if favorite {
		query = fmt.Sprintf(
			`INSERT INTO %s (user_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, t.favorites, t.itemCol)
	} else {
		query = fmt.Sprintf(
			`DELETE FROM %s WHERE user_id = $1 AND %s = $2`, t.favorites, t.itemCol)
	}
	if _, err := r.db.ExecContext(ctx, query, userID, itemID); err != nil {
		return fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}
	return nil
}

// Ignore は除外マークを冪等に付与する。
func (r *PostgresMarkRepo) Ignore(ctx context.Context, kind model.Kind, userID, itemID string) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (user_id, %s) VALUES ($1, $2) ON CONFLICT DO NOTHING`, t.ignores, t.itemCol),
		userID, itemID,
	)
	if err != nil {
		return fmt.Errorf("除外マークの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MarkRepository = (*PostgresMarkRepo)(nil)
