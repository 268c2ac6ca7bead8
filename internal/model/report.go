package model

import "time"

// Report はユーザーから送信されたアイテムの誤り報告。
// 管理者へのメール通知はアウトボックス方式で行い、
// NotifiedAt がnilの間はワーカーが再送を試みる。
type Report struct {
	ID             string
	UserID         string
	UserEmail      string
	Kind           Kind
	ItemID         string
	Message        string
	NotifiedAt     *time.Time
	NotifyAttempts int
	NextNotifyAt   time.Time
	LastError      string
	CreatedAt      time.Time
}
