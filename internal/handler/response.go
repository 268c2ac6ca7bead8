// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jusmemoriza/internal/middleware"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/study"
)

// maxJSONBodySize はJSONリクエストボディの上限サイズ（1MB）。
const maxJSONBodySize = 1 << 20

// maxFormBodySize は学習操作のフォームボディの上限サイズ（16KB）。
const maxFormBodySize = 16 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation, model.ErrCodeInvalidAnswer, model.ErrCodeInvalidMode,
		model.ErrCodeInvalidKind, model.ErrCodeUnknownIntent, model.ErrCodeInvalidPayload,
		model.ErrCodeUnknownEvent, model.ErrCodeImportFailed:
		return http.StatusBadRequest
	case model.ErrCodeItemNotFound, model.ErrCodeComboNotFound, model.ErrCodeTaxonomyNotFound,
		model.ErrCodeUserNotFound, model.ErrCodeImageNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateName:
		return http.StatusConflict
	case model.ErrCodeForbidden, model.ErrCodeInvalidHottok:
		return http.StatusForbidden
	case model.ErrCodeImageFetchFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// currentViewer はコンテキストから閲覧者を取り出す。
// 未認証の場合は401を書き込みfalseを返す。
func currentViewer(w http.ResponseWriter, r *http.Request) (study.Viewer, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return study.Viewer{}, false
	}
	return study.Viewer{
		UserID:    userID,
		SessionID: middleware.SessionIDFromContext(r.Context()),
	}, true
}

// decodeJSONBody はリクエストボディをdstにデコードする。
// 失敗した場合は400を書き込みfalseを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(
			model.FieldError{Field: "body", Message: "corpo da requisição inválido"},
		))
		return false
	}
	return true
}

// statusRequest は有効/無効切り替えのリクエストボディ。
type statusRequest struct {
	Status *bool `json:"status"`
}

// decodeStatus は有効/無効切り替えのリクエストを解析する。
func decodeStatus(w http.ResponseWriter, r *http.Request) (bool, bool) {
	var req statusRequest
	if !decodeJSONBody(w, r, &req) {
		return false, false
	}
	if req.Status == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(
			model.FieldError{Field: "status", Message: "campo obrigatório"},
		))
		return false, false
	}
	return *req.Status, true
}
