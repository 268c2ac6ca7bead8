package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresCardRepo はPostgreSQLを使用したフラッシュカード・クイズの管理用リポジトリ。
type PostgresCardRepo struct {
	db *sql.DB
}

// NewPostgresCardRepo はPostgresCardRepoを生成する。
func NewPostgresCardRepo(db *sql.DB) *PostgresCardRepo {
	return &PostgresCardRepo{db: db}
}

// FindFlashcard は指定IDのフラッシュカードを取得する。見つからない場合はnilを返す。
func (r *PostgresCardRepo) FindFlashcard(ctx context.Context, id string) (*model.Flashcard, error) {
	c := &model.Flashcard{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, artigo_id, front, back, fundamento, status, created_at, updated_at
		 FROM flashcards WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.ArtigoID, &c.Front, &c.Back, &c.Fundamento, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("フラッシュカードの取得に失敗しました: %w", err)
	}
	return c, nil
}

// CreateFlashcard はフラッシュカードを作成する。
func (r *PostgresCardRepo) CreateFlashcard(ctx context.Context, card *model.Flashcard) error {
	return insertFlashcard(ctx, r.db, card)
}

// UpdateFlashcard はフラッシュカードの内容を更新する。
func (r *PostgresCardRepo) UpdateFlashcard(ctx context.Context, card *model.Flashcard) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE flashcards
		 SET artigo_id = $1, front = $2, back = $3, fundamento = $4, updated_at = now()
		 WHERE id = $5`,
		card.ArtigoID, card.Front, card.Back, card.Fundamento, card.ID,
	)
	if err != nil {
		return false, fmt.Errorf("フラッシュカードの更新に失敗しました: %w", err)
	}
	return rowsAffected(result)
}

// FindQuiz は指定IDのクイズを取得する。見つからない場合はnilを返す。
func (r *PostgresCardRepo) FindQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	q := &model.Quiz{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, artigo_id, statement, answer, fundamento, status, created_at, updated_at
		 FROM quizzes WHERE id = $1`,
		id,
	).Scan(&q.ID, &q.ArtigoID, &q.Statement, &q.Answer, &q.Fundamento, &q.Status, &q.CreatedAt, &q.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("クイズの取得に失敗しました: %w", err)
	}
	return q, nil
}

// CreateQuiz はクイズを作成する。
func (r *PostgresCardRepo) CreateQuiz(ctx context.Context, quiz *model.Quiz) error {
	return insertQuiz(ctx, r.db, quiz)
}

// UpdateQuiz はクイズの内容を更新する。
func (r *PostgresCardRepo) UpdateQuiz(ctx context.Context, quiz *model.Quiz) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE quizzes
		 SET artigo_id = $1, statement = $2, answer = $3, fundamento = $4, updated_at = now()
		 WHERE id = $5`,
		quiz.ArtigoID, quiz.Statement, quiz.Answer, quiz.Fundamento, quiz.ID,
	)
	if err != nil {
		return false, fmt.Errorf("クイズの更新に失敗しました: %w", err)
	}
	return rowsAffected(result)
}

// SetStatus はカードの有効/無効を切り替える。
func (r *PostgresCardRepo) SetStatus(ctx context.Context, kind model.Kind, id string, status bool) (bool, error) {
	tables, err := tablesFor(kind)
	if err != nil {
		return false, err
	}
	result, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, updated_at = now() WHERE id = $2`, tables.items),
		status, id,
	)
	if err != nil {
		return false, fmt.Errorf("カードの状態更新に失敗しました: %w", err)
	}
	return rowsAffected(result)
}

// execer は*sql.DBと*sql.Txの共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertFlashcard(ctx context.Context, db execer, card *model.Flashcard) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO flashcards (id, artigo_id, front, back, fundamento, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		card.ID, card.ArtigoID, card.Front, card.Back, card.Fundamento, card.Status, card.CreatedAt, card.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("フラッシュカードの作成に失敗しました: %w", err)
	}
	return nil
}

func insertQuiz(ctx context.Context, db execer, quiz *model.Quiz) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO quizzes (id, artigo_id, statement, answer, fundamento, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		quiz.ID, quiz.ArtigoID, quiz.Statement, quiz.Answer, quiz.Fundamento, quiz.Status, quiz.CreatedAt, quiz.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("クイズの作成に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ CardRepository = (*PostgresCardRepo)(nil)
