// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// ErrDuplicate は一意制約違反を表す。サービス層でAPIErrorに変換する。
var ErrDuplicate = errors.New("duplicate key")

// ErrNotFound は更新・削除対象の行が存在しないことを表す。
var ErrNotFound = errors.New("not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// Withdraw はユーザーと学習履歴・マーク・報告・セッションを1トランザクションで削除する。
	Withdraw(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	// SyncProfile はIdPが返したメールアドレスと表示名でユーザーを更新する。
	SyncProfile(ctx context.Context, userID, email, name string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpiredBefore はbefore以前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// TaxonomyRepository は分類5階層の永続化インターフェース。
type TaxonomyRepository interface {
	// FindByID は指定レベル・IDのノードを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, level model.Level, id string) (*model.TaxonomyNode, error)
	// Create はノードを作成する。同一親で名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, node *model.TaxonomyNode) error
	// Update は名前・親・付帯属性を更新する。対象がない場合はfalseを返す。
	Update(ctx context.Context, node *model.TaxonomyNode) (bool, error)
	// SetStatus は有効/無効を切り替える。対象がない場合はfalseを返す。
	SetStatus(ctx context.Context, level model.Level, id string, status bool) (bool, error)
	// ListOptions はコンボ配下の有効なノードを選択肢として返す。
	// comboIDが空の場合は全コンボを対象とする。
	ListOptions(ctx context.Context, level model.Level, comboID string) ([]model.FilterOption, error)
}

// ComboRepository はコンボの永続化インターフェース。
type ComboRepository interface {
	// ListActive は有効なコンボを名前順で返す。画像バイト列は含まない。
	ListActive(ctx context.Context) ([]*model.Combo, error)
	// FindByID は指定IDのコンボをLeiID付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Combo, error)
	// Create はコンボを作成する。名前が重複する場合はErrDuplicateを返す。
	Create(ctx context.Context, combo *model.Combo) error
	// Update は名前と説明を更新する。対象がない場合はfalseを返す。
	Update(ctx context.Context, combo *model.Combo) (bool, error)
	// SetStatus は有効/無効を切り替える。対象がない場合はfalseを返す。
	SetStatus(ctx context.Context, id string, status bool) (bool, error)
	// ReplaceLeis はコンボとLeiの関連を置き換える。対象がない場合はfalseを返す。
	ReplaceLeis(ctx context.Context, comboID string, leiIDs []string) (bool, error)
	// SetImage はカバー画像を置き換える。対象がない場合はfalseを返す。
	SetImage(ctx context.Context, comboID string, data []byte, mime string) (bool, error)
	// FindImage はカバー画像を返す。コンボまたは画像がない場合はnilを返す。
	FindImage(ctx context.Context, comboID string) ([]byte, string, error)
}

// CardRepository は管理画面向けのフラッシュカード・クイズの永続化インターフェース。
type CardRepository interface {
	FindFlashcard(ctx context.Context, id string) (*model.Flashcard, error)
	CreateFlashcard(ctx context.Context, card *model.Flashcard) error
	UpdateFlashcard(ctx context.Context, card *model.Flashcard) (bool, error)
	FindQuiz(ctx context.Context, id string) (*model.Quiz, error)
	CreateQuiz(ctx context.Context, quiz *model.Quiz) error
	UpdateQuiz(ctx context.Context, quiz *model.Quiz) (bool, error)
	// SetStatus はカードの有効/無効を切り替える。対象がない場合はfalseを返す。
	SetStatus(ctx context.Context, kind model.Kind, id string, status bool) (bool, error)
}

// StudyRepository は学習デッキの抽出と進捗集計の読み取りインターフェース。
type StudyRepository interface {
	// ListDeck はフィルタとモードに合うアイテムを最大 model.DeckPageSize 件返す。
	// pageは名前付きモードでのみ使用する（1始まり）。
	ListDeck(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter, mode model.StudyMode, page int) ([]model.StudyItem, error)
	// Progress はフィルタ範囲の進捗を1クエリで集計する。
	Progress(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error)
	// ItemExists はアイテムが存在するかを返す。
	ItemExists(ctx context.Context, kind model.Kind, id string) (bool, error)
}

// MarkRepository は回答ログ・お気に入り・除外マークの書き込みインターフェース。
type MarkRepository interface {
	// InsertAnswer は回答を追記する。Seq と CreatedAt はDBで採番した値で埋める。
	InsertAnswer(ctx context.Context, kind model.Kind, answer *model.Answer) error
	// SetFavorite はお気に入りマークを冪等に付与・解除する。
	SetFavorite(ctx context.Context, kind model.Kind, userID, itemID string, favorite bool) error
	// Ignore は除外マークを冪等に付与する。解除はしない。
	Ignore(ctx context.Context, kind model.Kind, userID, itemID string) error
}

// PurchaseRepository は購入レコードの永続化インターフェース。
type PurchaseRepository interface {
	// Upsert は(transaction_id, email)をキーに購入レコードを作成または更新する。
	Upsert(ctx context.Context, purchase *model.Purchase) error
	// ListByEmail はメールアドレスに紐づく購入を新しい順で返す。
	ListByEmail(ctx context.Context, email string) ([]*model.Purchase, error)
}

// ReportRepository は誤り報告と通知アウトボックスの永続化インターフェース。
type ReportRepository interface {
	// Create は報告を保存する。
	Create(ctx context.Context, report *model.Report) error
	// ListPendingNotify は未通知かつ next_notify_at <= now の報告を古い順に返す。
	ListPendingNotify(ctx context.Context, now time.Time, limit int) ([]*model.Report, error)
	// MarkNotified は通知済みにする。
	MarkNotified(ctx context.Context, id string, at time.Time) error
	// MarkNotifyFailed は失敗回数・次回試行時刻・エラー内容を記録する。
	MarkNotifyFailed(ctx context.Context, id string, attempts int, next time.Time, lastErr string) error
}

// ImportTx はCSVインポート1回分のトランザクション内操作。
type ImportTx interface {
	// EnsureNode は親の下に名前が一致するノードを取得し、なければ作成してIDを返す。
	EnsureNode(ctx context.Context, level model.Level, parentID, name string) (string, error)
	InsertFlashcard(ctx context.Context, card *model.Flashcard) error
	InsertQuiz(ctx context.Context, quiz *model.Quiz) error
}

// ImportRepository はCSVインポートのトランザクション境界を提供する。
type ImportRepository interface {
	// InTx はfnを1トランザクションで実行する。fnがエラーを返した場合は全体をロールバックする。
	InTx(ctx context.Context, fn func(tx ImportTx) error) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
