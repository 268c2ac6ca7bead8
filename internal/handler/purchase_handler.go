package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jusmemoriza/internal/middleware"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

// maxWebhookBodySize はWebhookボディの上限サイズ（64KB）。
const maxWebhookBodySize = 64 << 10

// hottokHeader はHotmartが送信する共有トークンのヘッダー名。
const hottokHeader = "X-Hotmart-Hottok"

// PurchaseServiceInterface は購入Webhookと購入一覧に必要なサービスインターフェース。
type PurchaseServiceInterface interface {
	HandleWebhook(ctx context.Context, hottok string, body []byte) (*model.Purchase, error)
	ListForEmail(ctx context.Context, email string) ([]*model.Purchase, error)
}

// CurrentUserFinder はセッションIDから現在のユーザーを取得する。
type CurrentUserFinder interface {
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// PurchaseHandler は購入関連のHTTPハンドラー。
type PurchaseHandler struct {
	service PurchaseServiceInterface
	users   CurrentUserFinder
}

// NewPurchaseHandler はPurchaseHandlerを生成する。
func NewPurchaseHandler(service PurchaseServiceInterface, users CurrentUserFinder) *PurchaseHandler {
	return &PurchaseHandler{service: service, users: users}
}

// Webhook はHotmartの購入イベントを受け取る。認証不要（hottokで検証）。
// POST /resources/purchase-hotmart
func (h *PurchaseHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeAPIErrorResponse(w, http.StatusRequestEntityTooLarge, model.NewInvalidPayloadError(
				model.FieldError{Field: "body", Message: "payload muito grande"},
			))
			return
		}
		slog.Warn("failed to read webhook body", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidPayloadError())
		return
	}

	purchase, err := h.service.HandleWebhook(r.Context(), r.Header.Get(hottokHeader), body)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":         "ok",
		"transaction_id": purchase.TransactionID,
		"purchase":       string(purchase.Status),
	})
}

// ListMine はログインユーザーのメールアドレスに紐づく購入一覧を返す。
// GET /api/me/purchases
func (h *PurchaseHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		middleware.WriteUnauthorized(w)
		return
	}

	user, err := h.users.GetCurrentUser(r.Context(), sessionID)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteUnauthorized(w)
		return
	}

	purchases, err := h.service.ListForEmail(r.Context(), user.Email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPurchaseResponses(purchases))
}
