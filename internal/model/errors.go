// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string       // エラーコード
	Message  string       // エラーメッセージ
	Category string       // カテゴリ: auth, validation, study, content, webhook, system
	Action   string       // ユーザー向け対処方法
	Fields   []FieldError // フィールド単位の検証エラー（validationのみ）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// FieldError はフォーム・JSONのフィールド単位の検証エラー。
// CSVインポートでは Field に "line:N" 形式の行番号を格納する。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Warning は主処理が成功したうえで発生した副次処理（メール送信等）の失敗を表す。
// 呼び出し元にはレスポンスの warnings として返し、処理自体は失敗扱いにしない。
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// 定義済みエラーコード
const (
	ErrCodeValidation       = "VALIDATION_FAILED"
	ErrCodeInvalidAnswer    = "INVALID_ANSWER"
	ErrCodeInvalidMode      = "INVALID_MODE"
	ErrCodeInvalidKind      = "INVALID_KIND"
	ErrCodeUnknownIntent    = "UNKNOWN_INTENT"
	ErrCodeItemNotFound     = "ITEM_NOT_FOUND"
	ErrCodeComboNotFound    = "COMBO_NOT_FOUND"
	ErrCodeTaxonomyNotFound = "TAXONOMY_NOT_FOUND"
	ErrCodeDuplicateName    = "DUPLICATE_NAME"
	ErrCodeUserNotFound     = "USER_NOT_FOUND"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInvalidHottok    = "INVALID_HOTTOK"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeUnknownEvent     = "UNKNOWN_EVENT"
	ErrCodeImportFailed     = "IMPORT_FAILED"
	ErrCodeImageFetchFailed = "IMAGE_FETCH_FAILED"
	ErrCodeImageNotFound    = "IMAGE_NOT_FOUND"

	WarnCodeNotifyFailed = "NOTIFY_FAILED"
)

// NewValidationError はフィールド単位の検証エラーを生成する。
func NewValidationError(fields ...FieldError) *APIError {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Field
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", strings.Join(names, ", ")),
		Category: "validation",
		Action:   "各項目のエラー内容を確認して再度送信してください。",
		Fields:   fields,
	}
}

// NewInvalidAnswerError は回答ラベルが不正な場合のエラーを生成する。
func NewInvalidAnswerError(answer string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAnswer,
		Message:  fmt.Sprintf("無効な回答です: %q", answer),
		Category: "validation",
		Action:   "回答には sabia、duvida、nao_sabia のいずれかを指定してください。",
		Fields:   []FieldError{{Field: "answer", Message: "sabia, duvida ou nao_sabia"}},
	}
}

// NewInvalidModeError は学習モードが不正な場合のエラーを生成する。
func NewInvalidModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMode,
		Message:  fmt.Sprintf("無効な学習モードです: %q", mode),
		Category: "validation",
		Action:   "モードには initial、sabia、duvida、nao_sabia のいずれかを指定してください。",
	}
}

// NewInvalidKindError はコンテンツ種別が不正な場合のエラーを生成する。
func NewInvalidKindError(kind string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidKind,
		Message:  fmt.Sprintf("無効なコンテンツ種別です: %q", kind),
		Category: "validation",
		Action:   "flashcards または quizzes を指定してください。",
	}
}

// NewUnknownIntentError はintentフィールドが未知の値の場合のエラーを生成する。
func NewUnknownIntentError(intent string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownIntent,
		Message:  fmt.Sprintf("不明な操作です: %q", intent),
		Category: "validation",
		Action:   "intent には answer、favoritar、ignorar のいずれかを指定してください。",
		Fields:   []FieldError{{Field: "intent", Message: "answer, favoritar ou ignorar"}},
	}
}

// NewItemNotFoundError は学習アイテム未検出エラーを生成する。
func NewItemNotFoundError(itemID string) *APIError {
	return &APIError{
		Code:     ErrCodeItemNotFound,
		Message:  fmt.Sprintf("指定されたアイテムが見つかりません: %s", itemID),
		Category: "study",
		Action:   "アイテムIDを確認してください。",
	}
}

// NewComboNotFoundError はコンボ未検出エラーを生成する。
func NewComboNotFoundError(comboID string) *APIError {
	return &APIError{
		Code:     ErrCodeComboNotFound,
		Message:  fmt.Sprintf("指定されたコンボが見つかりません: %s", comboID),
		Category: "study",
		Action:   "コンボ一覧から選択し直してください。",
	}
}

// NewTaxonomyNotFoundError は分類（matéria〜artigo）の未検出エラーを生成する。
func NewTaxonomyNotFoundError(level Level, id string) *APIError {
	return &APIError{
		Code:     ErrCodeTaxonomyNotFound,
		Message:  fmt.Sprintf("指定された%sが見つかりません: %s", level, id),
		Category: "content",
		Action:   "IDを確認してください。",
	}
}

// NewDuplicateNameError は同一親の下で名前が重複した場合のエラーを生成する。
func NewDuplicateNameError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateName,
		Message:  fmt.Sprintf("同じ名前が既に存在します: %s", name),
		Category: "content",
		Action:   "別の名前を指定してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は管理者権限が必要な操作のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewInvalidHottokError はWebhookの共有シークレット不一致エラーを生成する。
func NewInvalidHottokError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidHottok,
		Message:  "Webhookトークンが一致しません。",
		Category: "webhook",
		Action:   "x-hotmart-hottok ヘッダーの値を確認してください。",
	}
}

// NewInvalidPayloadError はWebhookペイロードのスキーマ不一致エラーを生成する。
func NewInvalidPayloadError(fields ...FieldError) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPayload,
		Message:  "ペイロードの形式が正しくありません。",
		Category: "webhook",
		Action:   "送信元のペイロード定義を確認してください。",
		Fields:   fields,
	}
}

// NewUnknownEventError は未対応のWebhookイベント種別エラーを生成する。
func NewUnknownEventError(event string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownEvent,
		Message:  fmt.Sprintf("未対応のイベントです: %s", event),
		Category: "webhook",
		Action:   "PURCHASE_COMPLETE、PURCHASE_EXPIRED、PURCHASE_REFUNDED のみ受け付けます。",
	}
}

// NewImportFailedError はCSVインポートの失敗を行単位のエラー付きで生成する。
func NewImportFailedError(rows []FieldError) *APIError {
	return &APIError{
		Code:     ErrCodeImportFailed,
		Message:  fmt.Sprintf("CSVのインポートに失敗しました（%d件のエラー）", len(rows)),
		Category: "validation",
		Action:   "エラーのある行を修正して再度アップロードしてください。",
		Fields:   rows,
	}
}

// NewImageFetchFailedError は画像URLからの取得失敗エラーを生成する。
func NewImageFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeImageFetchFailed,
		Message:  fmt.Sprintf("画像の取得に失敗しました: %s", reason),
		Category: "content",
		Action:   "公開されている画像URL（https）を指定してください。",
	}
}

// NewImageNotFoundError は画像未設定エラーを生成する。
func NewImageNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeImageNotFound,
		Message:  "画像が設定されていません。",
		Category: "content",
		Action:   "管理画面から画像を設定してください。",
	}
}
