package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresImportRepo はCSVインポート用のトランザクションを提供する。
type PostgresImportRepo struct {
	db *sql.DB
}

// NewPostgresImportRepo はPostgresImportRepoを生成する。
func NewPostgresImportRepo(db *sql.DB) *PostgresImportRepo {
	return &PostgresImportRepo{db: db}
}

// InTx はfnを1トランザクションで実行する。
func (r *PostgresImportRepo) InTx(ctx context.Context, fn func(tx ImportTx) error) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&postgresImportTx{tx: tx})
	})
}

type postgresImportTx struct {
	tx *sql.Tx
}

// EnsureNode は親の下に同名のノードがあればそのIDを、なければ作成したIDを返す。
// ON CONFLICT DO UPDATE で既存行のIDも RETURNING で受け取る。
func (t *postgresImportTx) EnsureNode(ctx context.Context, level model.Level, parentID, name string) (string, error) {
	meta, err := metaFor(level)
	if err != nil {
		return "", err
	}

	var query string
	args := []interface{}{uuid.New().String(), name}
	if meta.parentCol == "" {
		query = fmt.Sprintf(
			`INSERT INTO %s (id, name) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, meta.table)
	} else {
		query = fmt.Sprintf(
			`INSERT INTO %[1]s (id, name, %[2]s) VALUES ($1, $2, $3)
			 ON CONFLICT (%[2]s, name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`, meta.table, meta.parentCol)
		args = append(args, parentID)
	}

	var id string
	if err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return "", fmt.Errorf("%s %q の登録に失敗しました: %w", level, name, err)
	}
	return id, nil
}

func (t *postgresImportTx) InsertFlashcard(ctx context.Context, card *model.Flashcard) error {
	return insertFlashcard(ctx, t.tx, card)
}

func (t *postgresImportTx) InsertQuiz(ctx context.Context, quiz *model.Quiz) error {
	return insertQuiz(ctx, t.tx, quiz)
}

// compile-time interface check
var (
	_ ImportRepository = (*PostgresImportRepo)(nil)
	_ ImportTx         = (*postgresImportTx)(nil)
)
