package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, name, is_admin, created_at, updated_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.Name, &user.IsAdmin, &user.CreatedAt, &user.UpdatedAt)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO users (id, email, name, is_admin, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			user.ID, user.Email, user.Name, user.IsAdmin, user.CreatedAt, user.UpdatedAt,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("email %q: %w", user.Email, ErrDuplicate)
			}
			return fmt.Errorf("failed to insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert identity: %w", err)
		}
		return nil
	})
}

// withdrawStatements は退会時に削除するテーブルの順序。
// identitiesはusersのCASCADEで削除される。
var withdrawStatements = []string{
	`DELETE FROM flashcard_answers WHERE user_id = $1`,
	`DELETE FROM quiz_answers WHERE user_id = $1`,
	`DELETE FROM flashcard_favorites WHERE user_id = $1`,
	`DELETE FROM quiz_favorites WHERE user_id = $1`,
	`DELETE FROM flashcard_ignores WHERE user_id = $1`,
	`DELETE FROM quiz_ignores WHERE user_id = $1`,
	`DELETE FROM reports WHERE user_id = $1`,
	`DELETE FROM sessions WHERE user_id = $1`,
}

// Withdraw はユーザーの学習データとユーザー本体を1トランザクションで削除する。
// 購入レコードはメールアドレス単位の取引記録として残す。
func (r *PostgresUserRepo) Withdraw(ctx context.Context, id string) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, stmt := range withdrawStatements {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("failed to delete user data: %w", err)
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		found, err := rowsAffected(result)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
