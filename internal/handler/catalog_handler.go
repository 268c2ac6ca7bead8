package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jusmemoriza/internal/catalog"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

// CatalogServiceInterface はコンボ閲覧に必要なサービスインターフェース。
type CatalogServiceInterface interface {
	ListCombos(ctx context.Context) ([]*model.Combo, error)
	GetCombo(ctx context.Context, id string) (*catalog.ComboDetail, error)
	FilterOptions(ctx context.Context, comboID string) (*model.FilterOptions, error)
}

// ImageServiceInterface はカバー画像の配信・設定に必要なサービスインターフェース。
type ImageServiceInterface interface {
	ComboImage(ctx context.Context, comboID string) ([]byte, string, error)
	SetComboImageFromURL(ctx context.Context, comboID, imageURL string) error
}

// CatalogHandler はコンボ閲覧のHTTPハンドラー。
type CatalogHandler struct {
	service CatalogServiceInterface
	images  ImageServiceInterface
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, images ImageServiceInterface) *CatalogHandler {
	return &CatalogHandler{service: service, images: images}
}

// ListCombos は有効なコンボ一覧を返す。
// GET /api/combos
func (h *CatalogHandler) ListCombos(w http.ResponseWriter, r *http.Request) {
	combos, err := h.service.ListCombos(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]comboResponse, len(combos))
	for i, c := range combos {
		resp[i] = toComboResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetCombo はコンボ詳細と所属Leiを返す。
// GET /api/combos/{comboID}
func (h *CatalogHandler) GetCombo(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetCombo(r.Context(), chi.URLParam(r, "comboID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, comboDetailResponse{
		comboResponse: toComboResponse(detail.Combo),
		Leis:          detail.Leis,
	})
}

// Filters はフィルタシートの選択肢を返す。
// GET /api/combos/{comboID}/filters
func (h *CatalogHandler) Filters(w http.ResponseWriter, r *http.Request) {
	options, err := h.service.FilterOptions(r.Context(), chi.URLParam(r, "comboID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, options)
}

// Image はコンボのカバー画像を配信する。認証不要。
// GET /api/combos/{comboID}/image
func (h *CatalogHandler) Image(w http.ResponseWriter, r *http.Request) {
	data, mime, err := h.images.ComboImage(r.Context(), chi.URLParam(r, "comboID"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
