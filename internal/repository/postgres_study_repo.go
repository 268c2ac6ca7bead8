package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresStudyRepo はPostgreSQLを使用した学習デッキ・進捗の読み取りリポジトリ。
type PostgresStudyRepo struct {
	db *sql.DB
}

// NewPostgresStudyRepo はPostgresStudyRepoを生成する。
func NewPostgresStudyRepo(db *sql.DB) *PostgresStudyRepo {
	return &PostgresStudyRepo{db: db}
}

// ListDeck はフィルタとモードに合うアイテムを最大 model.DeckPageSize 件返す。
func (r *PostgresStudyRepo) ListDeck(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter, mode model.StudyMode, page int) ([]model.StudyItem, error) {
	query, args, err := buildDeckQuery(userID, kind, filter, mode, page)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("デッキの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	items := make([]model.StudyItem, 0, model.DeckPageSize)
	for rows.Next() {
		var it model.StudyItem
		var last string
		if err := rows.Scan(
			&it.ID, &it.Front, &it.Back, &it.Fundamento,
			&it.MateriaName, &it.MateriaColor, &it.LeiName,
			&it.IsFavorite, &last,
		); err != nil {
			return nil, fmt.Errorf("デッキのスキャンに失敗しました: %w", err)
		}
		it.LastAnswer = model.AnswerLabel(last)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("デッキのイテレーションに失敗しました: %w", err)
	}
	return items, nil
}

// Progress はフィルタ範囲の総数・お気に入り数・最新回答ラベル別件数を集計する。
func (r *PostgresStudyRepo) Progress(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error) {
	query, args, err := buildProgressQuery(userID, kind, filter)
	if err != nil {
		return nil, err
	}

	p := &model.Progress{}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.Total, &p.Favorite, &p.Sabia, &p.Duvida, &p.NaoSabia,
	); err != nil {
		return nil, fmt.Errorf("進捗の集計に失敗しました: %w", err)
	}
	return p, nil
}

// ItemExists はアイテムが存在するかを返す。
func (r *PostgresStudyRepo) ItemExists(ctx context.Context, kind model.Kind, id string) (bool, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return false, err
	}
	var exists bool
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, t.items), id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("アイテムの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ StudyRepository = (*PostgresStudyRepo)(nil)
