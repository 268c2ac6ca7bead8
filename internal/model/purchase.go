package model

import "time"

// PurchaseEvent はHotmartから通知される購入ライフサイクルイベント。
type PurchaseEvent string

const (
	PurchaseEventComplete PurchaseEvent = "PURCHASE_COMPLETE"
	PurchaseEventExpired  PurchaseEvent = "PURCHASE_EXPIRED"
	PurchaseEventRefunded PurchaseEvent = "PURCHASE_REFUNDED"
)

// PurchaseStatus は購入レコードの現在状態。
type PurchaseStatus string

const (
	PurchaseStatusActive   PurchaseStatus = "active"
	PurchaseStatusExpired  PurchaseStatus = "expired"
	PurchaseStatusRefunded PurchaseStatus = "refunded"
)

// StatusFor はイベントに対応する購入状態を返す。
func (e PurchaseEvent) StatusFor() (PurchaseStatus, bool) {
	switch e {
	case PurchaseEventComplete:
		return PurchaseStatusActive, true
	case PurchaseEventExpired:
		return PurchaseStatusExpired, true
	case PurchaseEventRefunded:
		return PurchaseStatusRefunded, true
	default:
		return "", false
	}
}

// Purchase は(transaction_id, email)をキーとする購入レコード。
type Purchase struct {
	ID            string
	TransactionID string
	Email         string
	BuyerName     string
	ProductID     string
	ProductName   string
	Status        PurchaseStatus
	LastEvent     PurchaseEvent
	PurchasedAt   *time.Time
	ExpiresAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
