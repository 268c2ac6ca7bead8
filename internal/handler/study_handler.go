package handler

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/study"
)

// StudyServiceInterface は学習ハンドラーが必要とするサービスインターフェース。
type StudyServiceInterface interface {
	Deck(ctx context.Context, v study.Viewer, req study.DeckRequest) (*study.DeckResult, error)
	Progress(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error)
	Answer(ctx context.Context, v study.Viewer, kind model.Kind, itemID, answer string) (*model.Answer, error)
	SetFavorite(ctx context.Context, v study.Viewer, kind model.Kind, itemID string, favorite bool) error
	Ignore(ctx context.Context, v study.Viewer, kind model.Kind, itemID string) error
}

// StudyHandler は学習デッキ・進捗・回答のHTTPハンドラー。
type StudyHandler struct {
	service StudyServiceInterface
}

// NewStudyHandler はStudyHandlerを生成する。
func NewStudyHandler(service StudyServiceInterface) *StudyHandler {
	return &StudyHandler{service: service}
}

// フォームの intent ごとのリクエスト。
type (
	answerIntent struct {
		ItemID string
		Answer string
	}
	favoriteIntent struct {
		ItemID   string
		Favorite bool
	}
	ignoreIntent struct {
		ItemID string
	}
)

// intentRequest は intent フィールドで選ばれるリクエストのいずれか。
type intentRequest interface {
	intentName() string
}

func (answerIntent) intentName() string   { return "answer" }
func (favoriteIntent) intentName() string { return "favoritar" }
func (ignoreIntent) intentName() string   { return "ignorar" }

// decodeIntent はフォーム値を intent に対応するリクエストに変換する。
func decodeIntent(form url.Values) (intentRequest, error) {
	intent := form.Get("intent")
	itemID := form.Get("id")

	var req intentRequest
	switch intent {
	case "answer":
		req = answerIntent{ItemID: itemID, Answer: form.Get("answer")}
	case "favoritar":
		req = favoriteIntent{ItemID: itemID, Favorite: form.Get("favorite") == "yes"}
	case "ignorar":
		req = ignoreIntent{ItemID: itemID}
	default:
		return nil, model.NewUnknownIntentError(intent)
	}

	if !study.IsValidID(itemID) {
		return nil, model.NewValidationError(model.FieldError{Field: "id", Message: "ID inválido"})
	}
	return req, nil
}

// Deck は学習デッキを返す。
// GET /api/{kind}/{comboID}/type/{type}
func (h *StudyHandler) Deck(w http.ResponseWriter, r *http.Request) {
	v, ok := currentViewer(w, r)
	if !ok {
		return
	}
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	mode, err := model.ParseStudyMode(chi.URLParam(r, "type"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	q := r.URL.Query()
	filter, page, err := study.ParseFilter(chi.URLParam(r, "comboID"), q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Deck(r.Context(), v, study.DeckRequest{
		Kind:    kind,
		Mode:    mode,
		Filter:  filter,
		Page:    page,
		Refresh: q.Get("refresh") == "1",
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deckResponse{
		Kind:   string(kind),
		Mode:   string(mode),
		Page:   result.Page,
		Cached: result.Cached,
		Items:  toStudyItemResponses(result.Items),
	})
}

// Progress はフィルタ範囲の進捗を返す。comboIDがない場合は全コンボが対象。
// GET /api/{kind}/{comboID}/progress, GET /api/{kind}/progress
func (h *StudyHandler) Progress(w http.ResponseWriter, r *http.Request) {
	v, ok := currentViewer(w, r)
	if !ok {
		return
	}
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	filter, _, err := study.ParseFilter(chi.URLParam(r, "comboID"), r.URL.Query())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	progress, err := h.service.Progress(r.Context(), v.UserID, kind, filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Intent は学習画面からのフォーム送信を intent ごとの処理に振り分ける。
// POST /api/{kind}/{comboID}/type/{type}
func (h *StudyHandler) Intent(w http.ResponseWriter, r *http.Request) {
	v, ok := currentViewer(w, r)
	if !ok {
		return
	}
	kind, err := model.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if _, err := model.ParseStudyMode(chi.URLParam(r, "type")); err != nil {
		handleServiceError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxFormBodySize)
	if err := r.ParseForm(); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError(
			model.FieldError{Field: "body", Message: "formulário inválido"},
		))
		return
	}

	req, err := decodeIntent(r.PostForm)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	switch req := req.(type) {
	case answerIntent:
		h.answer(w, r, v, kind, req)
	case favoriteIntent:
		h.favorite(w, r, v, kind, req)
	case ignoreIntent:
		h.ignore(w, r, v, kind, req)
	}
}

func (h *StudyHandler) answer(w http.ResponseWriter, r *http.Request, v study.Viewer, kind model.Kind, req answerIntent) {
	rec, err := h.service.Answer(r.Context(), v, kind, req.ItemID, req.Answer)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent":      req.intentName(),
		"id":          rec.ItemID,
		"answer":      string(rec.Label),
		"answered_at": rec.CreatedAt,
	})
}

func (h *StudyHandler) favorite(w http.ResponseWriter, r *http.Request, v study.Viewer, kind model.Kind, req favoriteIntent) {
	if err := h.service.SetFavorite(r.Context(), v, kind, req.ItemID, req.Favorite); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent":   req.intentName(),
		"id":       req.ItemID,
		"favorite": req.Favorite,
	})
}

func (h *StudyHandler) ignore(w http.ResponseWriter, r *http.Request, v study.Viewer, kind model.Kind, req ignoreIntent) {
	if err := h.service.Ignore(r.Context(), v, kind, req.ItemID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"intent":  req.intentName(),
		"id":      req.ItemID,
		"ignored": true,
	})
}
