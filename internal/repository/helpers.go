package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// psql はPostgreSQLの$n形式プレースホルダでSQLを組み立てるビルダー。
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// pqUniqueViolation はPostgreSQLの一意制約違反エラーコード。
const pqUniqueViolation = "23505"

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

// nullString は空文字列をNULLとして扱うsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringを文字列に変換する。NULLの場合は空文字列を返す。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

// rowsAffected は更新件数が1件以上かどうかを返す。
func rowsAffected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// kindTables はコンテンツ種別ごとのテーブル名と項目カラム名。
type kindTables struct {
	items     string
	answers   string
	favorites string
	ignores   string
	itemCol   string
}

var tablesByKind = map[model.Kind]kindTables{
	model.KindFlashcards: {
		items:     "flashcards",
		answers:   "flashcard_answers",
		favorites: "flashcard_favorites",
		ignores:   "flashcard_ignores",
		itemCol:   "flashcard_id",
	},
	model.KindQuizzes: {
		items:     "quizzes",
		answers:   "quiz_answers",
		favorites: "quiz_favorites",
		ignores:   "quiz_ignores",
		itemCol:   "quiz_id",
	},
}

func tablesFor(kind model.Kind) (kindTables, error) {
	t, ok := tablesByKind[kind]
	if !ok {
		return kindTables{}, model.NewInvalidKindError(string(kind))
	}
	return t, nil
}

// withTx はfnを1トランザクションで実行する。fnがエラーを返すとロールバックする。
func withTx(ctx context.Context, db TxBeginner, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
