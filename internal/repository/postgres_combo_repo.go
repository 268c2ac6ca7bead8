package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresComboRepo はPostgreSQLを使用したコンボリポジトリ。
type PostgresComboRepo struct {
	db *sql.DB
}

// NewPostgresComboRepo はPostgresComboRepoを生成する。
func NewPostgresComboRepo(db *sql.DB) *PostgresComboRepo {
	return &PostgresComboRepo{db: db}
}

// ListActive は有効なコンボを名前順で返す。画像バイト列は含まず、ImageMimeのみ設定する。
func (r *PostgresComboRepo) ListActive(ctx context.Context) ([]*model.Combo, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.name, c.description, c.image_mime, c.status, c.created_at, c.updated_at,
		        COALESCE(array_agg(cl.lei_id::text ORDER BY cl.lei_id) FILTER (WHERE cl.lei_id IS NOT NULL), '{}')
		 FROM combos c
		 LEFT JOIN combo_leis cl ON cl.combo_id = c.id
		 WHERE c.status
		 GROUP BY c.id
		 ORDER BY c.name`,
	)
	if err != nil {
		return nil, fmt.Errorf("コンボ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var combos []*model.Combo
	for rows.Next() {
		c := &model.Combo{}
		var mime sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &mime, &c.Status, &c.CreatedAt, &c.UpdatedAt, pq.Array(&c.LeiIDs)); err != nil {
			return nil, fmt.Errorf("コンボのスキャンに失敗しました: %w", err)
		}
		c.ImageMime = nullStringValue(mime)
		combos = append(combos, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コンボ一覧のイテレーションに失敗しました: %w", err)
	}
	return combos, nil
}

// FindByID は指定IDのコンボをLeiID付きで取得する。無効なコンボも返す。
// 見つからない場合はnilを返す。
func (r *PostgresComboRepo) FindByID(ctx context.Context, id string) (*model.Combo, error) {
	c := &model.Combo{}
	var mime sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT c.id, c.name, c.description, c.image_mime, c.status, c.created_at, c.updated_at,
		        COALESCE(array_agg(cl.lei_id::text ORDER BY cl.lei_id) FILTER (WHERE cl.lei_id IS NOT NULL), '{}')
		 FROM combos c
		 LEFT JOIN combo_leis cl ON cl.combo_id = c.id
		 WHERE c.id = $1
		 GROUP BY c.id`,
		id,
	).Scan(&c.ID, &c.Name, &c.Description, &mime, &c.Status, &c.CreatedAt, &c.UpdatedAt, pq.Array(&c.LeiIDs))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("コンボの取得に失敗しました: %w", err)
	}
	c.ImageMime = nullStringValue(mime)
	return c, nil
}

// Create はコンボを作成する。名前が重複する場合はErrDuplicateを返す。
func (r *PostgresComboRepo) Create(ctx context.Context, combo *model.Combo) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO combos (id, name, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		combo.ID, combo.Name, combo.Description, combo.Status, combo.CreatedAt, combo.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("combo %q: %w", combo.Name, ErrDuplicate)
		}
		return fmt.Errorf("コンボの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は名前と説明を更新する。
func (r *PostgresComboRepo) Update(ctx context.Context, combo *model.Combo) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE combos SET name = $1, description = $2, updated_at = now() WHERE id = $3`,
		combo.Name, combo.Description, combo.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, fmt.Errorf("combo %q: %w", combo.Name, ErrDuplicate)
		}
		return false, fmt.Errorf("コンボの更新に失敗しました: %w", err)
	}
	return rowsAffected(result)
}

// SetStatus は有効/無効を切り替える。
func (r *PostgresComboRepo) SetStatus(ctx context.Context, id string, status bool) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE combos SET status = $1, updated_at = now() WHERE id = $2`,
		status, id,
	)
	if err != nil {
		return false, fmt.Errorf("コンボの状態更新に失敗しました: %w", err)
	}
	return rowsAffected(result)
}

// ReplaceLeis はコンボとLeiの関連を1トランザクションで置き換える。
// コンボ行をロックしてから関連を削除・再作成する。
func (r *PostgresComboRepo) ReplaceLeis(ctx context.Context, comboID string, leiIDs []string) (bool, error) {
	var found bool
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if found, err = lockCombo(ctx, tx, comboID); err != nil || !found {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM combo_leis WHERE combo_id = $1`, comboID); err != nil {
			return fmt.Errorf("コンボ関連の削除に失敗しました: %w", err)
		}
		if len(leiIDs) > 0 {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO combo_leis (combo_id, lei_id)
				 SELECT $1, unnest($2::uuid[])
				 ON CONFLICT DO NOTHING`,
				comboID, pq.Array(leiIDs),
			)
			if err != nil {
				return fmt.Errorf("コンボ関連の作成に失敗しました: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE combos SET updated_at = now() WHERE id = $1`, comboID); err != nil {
			return fmt.Errorf("コンボの更新に失敗しました: %w", err)
		}
		return nil
	})
	return found && err == nil, err
}

// SetImage はカバー画像を1トランザクションで置き換える。
// 既存画像を消去してから新しい画像を設定し、途中で失敗した場合は元の画像が残る。
func (r *PostgresComboRepo) SetImage(ctx context.Context, comboID string, data []byte, mime string) (bool, error) {
	var found bool
	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		if found, err = lockCombo(ctx, tx, comboID); err != nil || !found {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE combos SET image_data = NULL, image_mime = NULL WHERE id = $1`, comboID,
		); err != nil {
			return fmt.Errorf("既存画像の消去に失敗しました: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE combos SET image_data = $1, image_mime = $2, updated_at = now() WHERE id = $3`,
			data, mime, comboID,
		); err != nil {
			return fmt.Errorf("画像の設定に失敗しました: %w", err)
		}
		return nil
	})
	return found && err == nil, err
}

// FindImage はカバー画像を返す。コンボまたは画像がない場合はnilを返す。
func (r *PostgresComboRepo) FindImage(ctx context.Context, comboID string) ([]byte, string, error) {
	var data []byte
	var mime sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT image_data, image_mime FROM combos WHERE id = $1`, comboID,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("画像の取得に失敗しました: %w", err)
	}
	if len(data) == 0 {
		return nil, "", nil
	}
	return data, nullStringValue(mime), nil
}

func lockCombo(ctx context.Context, tx *sql.Tx, comboID string) (bool, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM combos WHERE id = $1 FOR UPDATE`, comboID).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("コンボのロックに失敗しました: %w", err)
	}
	return true, nil
}

// compile-time interface check
var _ ComboRepository = (*PostgresComboRepo)(nil)
