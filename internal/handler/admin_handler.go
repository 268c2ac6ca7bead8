package handler

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jusmemoriza/internal/cards"
	"github.com/hitoshi/jusmemoriza/internal/catalog"
	"github.com/hitoshi/jusmemoriza/internal/importer"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

// maxImportSize はCSVアップロードの上限サイズ（10MB）。
const maxImportSize = 10 << 20

// levelPaths は管理APIのパスセグメントと分類レベルの対応。
var levelPaths = map[string]model.Level{
	"materias":  model.LevelMateria,
	"leis":      model.LevelLei,
	"titulos":   model.LevelTitulo,
	"capitulos": model.LevelCapitulo,
	"artigos":   model.LevelArtigo,
}

// AdminCatalogServiceInterface は分類・コンボ管理に必要なサービスインターフェース。
type AdminCatalogServiceInterface interface {
	GetNode(ctx context.Context, level model.Level, id string) (*model.TaxonomyNode, error)
	CreateNode(ctx context.Context, level model.Level, in catalog.NodeInput) (*model.TaxonomyNode, error)
	UpdateNode(ctx context.Context, level model.Level, id string, in catalog.NodeInput) (*model.TaxonomyNode, error)
	SetNodeStatus(ctx context.Context, level model.Level, id string, status bool) error

	GetComboAdmin(ctx context.Context, id string) (*model.Combo, error)
	CreateCombo(ctx context.Context, in catalog.ComboInput) (*model.Combo, error)
	UpdateCombo(ctx context.Context, id string, in catalog.ComboInput) (*model.Combo, error)
	SetComboStatus(ctx context.Context, id string, status bool) error
	ReplaceComboLeis(ctx context.Context, id string, in catalog.LeisInput) (*model.Combo, error)
}

// CardServiceInterface はフラッシュカード・クイズ管理に必要なサービスインターフェース。
type CardServiceInterface interface {
	GetFlashcard(ctx context.Context, id string) (*model.Flashcard, error)
	CreateFlashcard(ctx context.Context, in cards.FlashcardInput) (*model.Flashcard, error)
	UpdateFlashcard(ctx context.Context, id string, in cards.FlashcardInput) (*model.Flashcard, error)
	GetQuiz(ctx context.Context, id string) (*model.Quiz, error)
	CreateQuiz(ctx context.Context, in cards.QuizInput) (*model.Quiz, error)
	UpdateQuiz(ctx context.Context, id string, in cards.QuizInput) (*model.Quiz, error)
	SetStatus(ctx context.Context, kind model.Kind, id string, status bool) error
}

// ImportServiceInterface はCSVインポートに必要なサービスインターフェース。
type ImportServiceInterface interface {
	Import(ctx context.Context, kind model.Kind, r io.Reader) (*importer.Result, error)
}

// AdminHandler は管理画面向けのHTTPハンドラー。
type AdminHandler struct {
	catalog  AdminCatalogServiceInterface
	cards    CardServiceInterface
	importer ImportServiceInterface
	images   ImageServiceInterface
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(
	catalog AdminCatalogServiceInterface,
	cards CardServiceInterface,
	importer ImportServiceInterface,
	images ImageServiceInterface,
) *AdminHandler {
	return &AdminHandler{
		catalog:  catalog,
		cards:    cards,
		importer: importer,
		images:   images,
	}
}

// --- 分類ノード ---

// GetNode は分類ノードを返す。
// GET /api/admin/{level}/{id}
func (h *AdminHandler) GetNode(level model.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		node, err := h.catalog.GetNode(r.Context(), level, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toNodeResponse(node))
	}
}

// CreateNode は分類ノードを作成する。
// POST /api/admin/{level}
func (h *AdminHandler) CreateNode(level model.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.NodeInput
		if !decodeJSONBody(w, r, &in) {
			return
		}
		node, err := h.catalog.CreateNode(r.Context(), level, in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toNodeResponse(node))
	}
}

// UpdateNode は分類ノードを更新する。
// PUT /api/admin/{level}/{id}
func (h *AdminHandler) UpdateNode(level model.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in catalog.NodeInput
		if !decodeJSONBody(w, r, &in) {
			return
		}
		node, err := h.catalog.UpdateNode(r.Context(), level, chi.URLParam(r, "id"), in)
		if err != nil {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toNodeResponse(node))
	}
}

// SetNodeStatus は分類ノードの有効/無効を切り替える。
// PUT /api/admin/{level}/{id}/status
func (h *AdminHandler) SetNodeStatus(level model.Level) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, ok := decodeStatus(w, r)
		if !ok {
			return
		}
		if err := h.catalog.SetNodeStatus(r.Context(), level, chi.URLParam(r, "id"), status); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- コンボ ---

// GetCombo は無効なものも含めてコンボを返す。
// GET /api/admin/combos/{id}
func (h *AdminHandler) GetCombo(w http.ResponseWriter, r *http.Request) {
	combo, err := h.catalog.GetComboAdmin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminComboResponse(combo))
}

// CreateCombo はコンボを作成する。
// POST /api/admin/combos
func (h *AdminHandler) CreateCombo(w http.ResponseWriter, r *http.Request) {
	var in catalog.ComboInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	combo, err := h.catalog.CreateCombo(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAdminComboResponse(combo))
}

// UpdateCombo はコンボの名前と説明を更新する。
// PUT /api/admin/combos/{id}
func (h *AdminHandler) UpdateCombo(w http.ResponseWriter, r *http.Request) {
	var in catalog.ComboInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	combo, err := h.catalog.UpdateCombo(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminComboResponse(combo))
}

// SetComboStatus はコンボの有効/無効を切り替える。
// PUT /api/admin/combos/{id}/status
func (h *AdminHandler) SetComboStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := decodeStatus(w, r)
	if !ok {
		return
	}
	if err := h.catalog.SetComboStatus(r.Context(), chi.URLParam(r, "id"), status); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceComboLeis はコンボに属するLeiを置き換える。
// PUT /api/admin/combos/{id}/leis
func (h *AdminHandler) ReplaceComboLeis(w http.ResponseWriter, r *http.Request) {
	var in catalog.LeisInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	combo, err := h.catalog.ReplaceComboLeis(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminComboResponse(combo))
}

// setImageRequest はカバー画像設定のリクエストボディ。
type setImageRequest struct {
	URL string `json:"url"`
}

// SetComboImage は画像URLからコンボのカバー画像を設定する。
// PUT /api/admin/combos/{id}/image
func (h *AdminHandler) SetComboImage(w http.ResponseWriter, r *http.Request) {
	var req setImageRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(
			model.FieldError{Field: "url", Message: "campo obrigatório"},
		))
		return
	}

	comboID := chi.URLParam(r, "id")
	if err := h.images.SetComboImageFromURL(r.Context(), comboID, req.URL); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"image_url": "/api/combos/" + comboID + "/image",
	})
}

// --- フラッシュカード・クイズ ---

// GetFlashcard はフラッシュカードを返す。
// GET /api/admin/flashcards/{id}
func (h *AdminHandler) GetFlashcard(w http.ResponseWriter, r *http.Request) {
	card, err := h.cards.GetFlashcard(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlashcardResponse(card))
}

// CreateFlashcard はフラッシュカードを作成する。
// POST /api/admin/flashcards
func (h *AdminHandler) CreateFlashcard(w http.ResponseWriter, r *http.Request) {
	var in cards.FlashcardInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	card, err := h.cards.CreateFlashcard(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFlashcardResponse(card))
}

// UpdateFlashcard はフラッシュカードを更新する。
// PUT /api/admin/flashcards/{id}
func (h *AdminHandler) UpdateFlashcard(w http.ResponseWriter, r *http.Request) {
	var in cards.FlashcardInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	card, err := h.cards.UpdateFlashcard(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlashcardResponse(card))
}

// GetQuiz はクイズを返す。
// GET /api/admin/quizzes/{id}
func (h *AdminHandler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := h.cards.GetQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuizResponse(quiz))
}

// CreateQuiz はクイズを作成する。
// POST /api/admin/quizzes
func (h *AdminHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var in cards.QuizInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	quiz, err := h.cards.CreateQuiz(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuizResponse(quiz))
}

// UpdateQuiz はクイズを更新する。
// PUT /api/admin/quizzes/{id}
func (h *AdminHandler) UpdateQuiz(w http.ResponseWriter, r *http.Request) {
	var in cards.QuizInput
	if !decodeJSONBody(w, r, &in) {
		return
	}
	quiz, err := h.cards.UpdateQuiz(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuizResponse(quiz))
}

// SetCardStatus はカードの有効/無効を切り替える。
// PUT /api/admin/{flashcards|quizzes}/{id}/status
func (h *AdminHandler) SetCardStatus(kind model.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, ok := decodeStatus(w, r)
		if !ok {
			return
		}
		if err := h.cards.SetStatus(r.Context(), kind, chi.URLParam(r, "id"), status); err != nil {
			handleServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// --- CSVインポート ---

// Import はアップロードされたCSVを一括登録する。
// multipart の file フィールド、または text/csv の本文を受け付ける。
// POST /api/admin/import/{kind}
func (h *AdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var src io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(
				model.FieldError{Field: "file", Message: "arquivo CSV obrigatório"},
			))
			return
		}
		defer file.Close()
		src = file
	}

	result, err := h.importer.Import(r.Context(), kind, src)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
