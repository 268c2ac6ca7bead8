package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// PostgresPurchaseRepo はPostgreSQLを使用した購入リポジトリ。
type PostgresPurchaseRepo struct {
	db *sql.DB
}

// NewPostgresPurchaseRepo はPostgresPurchaseRepoを生成する。
func NewPostgresPurchaseRepo(db *sql.DB) *PostgresPurchaseRepo {
	return &PostgresPurchaseRepo{db: db}
}

// Upsert は(transaction_id, email)をキーに購入レコードを作成または更新する。
// 同じイベントの再送は最後の内容で上書きされるため冪等になる。
func (r *PostgresPurchaseRepo) Upsert(ctx context.Context, p *model.Purchase) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO purchases (
			id, transaction_id, email, buyer_name, product_id, product_name,
			status, event, purchased_at, expires_at, created_at, updated_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		 ON CONFLICT (transaction_id, email) DO UPDATE SET
			buyer_name   = EXCLUDED.buyer_name,
			product_id   = EXCLUDED.product_id,
			product_name = EXCLUDED.product_name,
			status       = EXCLUDED.status,
			event        = EXCLUDED.event,
			purchased_at = COALESCE(EXCLUDED.purchased_at, purchases.purchased_at),
			expires_at   = COALESCE(EXCLUDED.expires_at, purchases.expires_at),
			updated_at   = EXCLUDED.updated_at
		 RETURNING id, created_at`,
		p.ID, p.TransactionID, p.Email, p.BuyerName, p.ProductID, p.ProductName,
		string(p.Status), string(p.LastEvent), nullTime(p.PurchasedAt), nullTime(p.ExpiresAt), p.UpdatedAt,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("購入レコードの保存に失敗しました: %w", err)
	}
	return nil
}

// ListByEmail はメールアドレスに紐づく購入を新しい順で返す。
func (r *PostgresPurchaseRepo) ListByEmail(ctx context.Context, email string) ([]*model.Purchase, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, transaction_id, email, buyer_name, product_id, product_name,
		        status, event, purchased_at, expires_at, created_at, updated_at
		 FROM purchases
		 WHERE lower(email) = lower($1)
		 ORDER BY updated_at DESC`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("購入一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var purchases []*model.Purchase
	for rows.Next() {
		p := &model.Purchase{}
		var status, event string
		var purchasedAt, expiresAt sql.NullTime
		if err := rows.Scan(
			&p.ID, &p.TransactionID, &p.Email, &p.BuyerName, &p.ProductID, &p.ProductName,
			&status, &event, &purchasedAt, &expiresAt, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("購入レコードのスキャンに失敗しました: %w", err)
		}
		p.Status = model.PurchaseStatus(status)
		p.LastEvent = model.PurchaseEvent(event)
		p.PurchasedAt = timePtr(purchasedAt)
		p.ExpiresAt = timePtr(expiresAt)
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購入一覧のイテレーションに失敗しました: %w", err)
	}
	return purchases, nil
}

// compile-time interface check
var _ PurchaseRepository = (*PostgresPurchaseRepo)(nil)
