package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jusmemoriza/internal/cards"
	"github.com/hitoshi/jusmemoriza/internal/catalog"
	"github.com/hitoshi/jusmemoriza/internal/importer"
	"github.com/hitoshi/jusmemoriza/internal/middleware"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/report"
	"github.com/hitoshi/jusmemoriza/internal/study"
)

// --- モック定義 ---

type mockStudyService struct {
	deckFn        func(ctx context.Context, v study.Viewer, req study.DeckRequest) (*study.DeckResult, error)
	progressFn    func(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error)
	answerFn      func(ctx context.Context, v study.Viewer, kind model.Kind, itemID, answer string) (*model.Answer, error)
	setFavoriteFn func(ctx context.Context, v study.Viewer, kind model.Kind, itemID string, favorite bool) error
	ignoreFn      func(ctx context.Context, v study.Viewer, kind model.Kind, itemID string) error
}

func (m *mockStudyService) Deck(ctx context.Context, v study.Viewer, req study.DeckRequest) (*study.DeckResult, error) {
	if m.deckFn != nil {
		return m.deckFn(ctx, v, req)
	}
	return &study.DeckResult{Items: []model.StudyItem{}, Page: 1}, nil
}

func (m *mockStudyService) Progress(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error) {
	if m.progressFn != nil {
		return m.progressFn(ctx, userID, kind, filter)
	}
	return &model.Progress{}, nil
}

func (m *mockStudyService) Answer(ctx context.Context, v study.Viewer, kind model.Kind, itemID, answer string) (*model.Answer, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, v, kind, itemID, answer)
	}
	return &model.Answer{ItemID: itemID, UserID: v.UserID, Label: model.AnswerLabel(answer)}, nil
}

func (m *mockStudyService) SetFavorite(ctx context.Context, v study.Viewer, kind model.Kind, itemID string, favorite bool) error {
	if m.setFavoriteFn != nil {
		return m.setFavoriteFn(ctx, v, kind, itemID, favorite)
	}
	return nil
}

func (m *mockStudyService) Ignore(ctx context.Context, v study.Viewer, kind model.Kind, itemID string) error {
	if m.ignoreFn != nil {
		return m.ignoreFn(ctx, v, kind, itemID)
	}
	return nil
}

type mockCatalogService struct {
	listCombosFn    func(ctx context.Context) ([]*model.Combo, error)
	getComboFn      func(ctx context.Context, id string) (*catalog.ComboDetail, error)
	filterOptionsFn func(ctx context.Context, comboID string) (*model.FilterOptions, error)
}

func (m *mockCatalogService) ListCombos(ctx context.Context) ([]*model.Combo, error) {
	if m.listCombosFn != nil {
		return m.listCombosFn(ctx)
	}
	return []*model.Combo{}, nil
}

func (m *mockCatalogService) GetCombo(ctx context.Context, id string) (*catalog.ComboDetail, error) {
	if m.getComboFn != nil {
		return m.getComboFn(ctx, id)
	}
	return nil, model.NewComboNotFoundError(id)
}

func (m *mockCatalogService) FilterOptions(ctx context.Context, comboID string) (*model.FilterOptions, error) {
	if m.filterOptionsFn != nil {
		return m.filterOptionsFn(ctx, comboID)
	}
	return &model.FilterOptions{}, nil
}

type mockImageService struct {
	comboImageFn func(ctx context.Context, comboID string) ([]byte, string, error)
	setFromURLFn func(ctx context.Context, comboID, imageURL string) error
}

func (m *mockImageService) ComboImage(ctx context.Context, comboID string) ([]byte, string, error) {
	if m.comboImageFn != nil {
		return m.comboImageFn(ctx, comboID)
	}
	return nil, "", model.NewImageNotFoundError()
}

func (m *mockImageService) SetComboImageFromURL(ctx context.Context, comboID, imageURL string) error {
	if m.setFromURLFn != nil {
		return m.setFromURLFn(ctx, comboID, imageURL)
	}
	return nil
}

type mockAdminCatalogService struct {
	getNodeFn          func(ctx context.Context, level model.Level, id string) (*model.TaxonomyNode, error)
	createNodeFn       func(ctx context.Context, level model.Level, in catalog.NodeInput) (*model.TaxonomyNode, error)
	updateNodeFn       func(ctx context.Context, level model.Level, id string, in catalog.NodeInput) (*model.TaxonomyNode, error)
	setNodeStatusFn    func(ctx context.Context, level model.Level, id string, status bool) error
	getComboAdminFn    func(ctx context.Context, id string) (*model.Combo, error)
	createComboFn      func(ctx context.Context, in catalog.ComboInput) (*model.Combo, error)
	updateComboFn      func(ctx context.Context, id string, in catalog.ComboInput) (*model.Combo, error)
	setComboStatusFn   func(ctx context.Context, id string, status bool) error
	replaceComboLeisFn func(ctx context.Context, id string, in catalog.LeisInput) (*model.Combo, error)
}

func (m *mockAdminCatalogService) GetNode(ctx context.Context, level model.Level, id string) (*model.TaxonomyNode, error) {
	if m.getNodeFn != nil {
		return m.getNodeFn(ctx, level, id)
	}
	return &model.TaxonomyNode{ID: id, Level: level}, nil
}

func (m *mockAdminCatalogService) CreateNode(ctx context.Context, level model.Level, in catalog.NodeInput) (*model.TaxonomyNode, error) {
	if m.createNodeFn != nil {
		return m.createNodeFn(ctx, level, in)
	}
	return &model.TaxonomyNode{ID: "node-1", Level: level, ParentID: in.ParentID, Name: in.Name, Status: true}, nil
}

func (m *mockAdminCatalogService) UpdateNode(ctx context.Context, level model.Level, id string, in catalog.NodeInput) (*model.TaxonomyNode, error) {
	if m.updateNodeFn != nil {
		return m.updateNodeFn(ctx, level, id, in)
	}
	return &model.TaxonomyNode{ID: id, Level: level, Name: in.Name}, nil
}

func (m *mockAdminCatalogService) SetNodeStatus(ctx context.Context, level model.Level, id string, status bool) error {
	if m.setNodeStatusFn != nil {
		return m.setNodeStatusFn(ctx, level, id, status)
	}
	return nil
}

func (m *mockAdminCatalogService) GetComboAdmin(ctx context.Context, id string) (*model.Combo, error) {
	if m.getComboAdminFn != nil {
		return m.getComboAdminFn(ctx, id)
	}
	return &model.Combo{ID: id}, nil
}

func (m *mockAdminCatalogService) CreateCombo(ctx context.Context, in catalog.ComboInput) (*model.Combo, error) {
	if m.createComboFn != nil {
		return m.createComboFn(ctx, in)
	}
	return &model.Combo{ID: "combo-1", Name: in.Name, Description: in.Description, Status: true}, nil
}

func (m *mockAdminCatalogService) UpdateCombo(ctx context.Context, id string, in catalog.ComboInput) (*model.Combo, error) {
	if m.updateComboFn != nil {
		return m.updateComboFn(ctx, id, in)
	}
	return &model.Combo{ID: id, Name: in.Name}, nil
}

func (m *mockAdminCatalogService) SetComboStatus(ctx context.Context, id string, status bool) error {
	if m.setComboStatusFn != nil {
		return m.setComboStatusFn(ctx, id, status)
	}
	return nil
}

func (m *mockAdminCatalogService) ReplaceComboLeis(ctx context.Context, id string, in catalog.LeisInput) (*model.Combo, error) {
	if m.replaceComboLeisFn != nil {
		return m.replaceComboLeisFn(ctx, id, in)
	}
	return &model.Combo{ID: id, LeiIDs: in.LeiIDs}, nil
}

type mockCardService struct {
	getFlashcardFn    func(ctx context.Context, id string) (*model.Flashcard, error)
	createFlashcardFn func(ctx context.Context, in cards.FlashcardInput) (*model.Flashcard, error)
	updateFlashcardFn func(ctx context.Context, id string, in cards.FlashcardInput) (*model.Flashcard, error)
	getQuizFn         func(ctx context.Context, id string) (*model.Quiz, error)
	createQuizFn      func(ctx context.Context, in cards.QuizInput) (*model.Quiz, error)
	updateQuizFn      func(ctx context.Context, id string, in cards.QuizInput) (*model.Quiz, error)
	setStatusFn       func(ctx context.Context, kind model.Kind, id string, status bool) error
}

func (m *mockCardService) GetFlashcard(ctx context.Context, id string) (*model.Flashcard, error) {
	if m.getFlashcardFn != nil {
		return m.getFlashcardFn(ctx, id)
	}
	return &model.Flashcard{ID: id}, nil
}

func (m *mockCardService) CreateFlashcard(ctx context.Context, in cards.FlashcardInput) (*model.Flashcard, error) {
	if m.createFlashcardFn != nil {
		return m.createFlashcardFn(ctx, in)
	}
	return &model.Flashcard{ID: "card-1", ArtigoID: in.ArtigoID, Front: in.Front, Back: in.Back, Status: true}, nil
}

func (m *mockCardService) UpdateFlashcard(ctx context.Context, id string, in cards.FlashcardInput) (*model.Flashcard, error) {
	if m.updateFlashcardFn != nil {
		return m.updateFlashcardFn(ctx, id, in)
	}
	return &model.Flashcard{ID: id, Front: in.Front}, nil
}

func (m *mockCardService) GetQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	if m.getQuizFn != nil {
		return m.getQuizFn(ctx, id)
	}
	return &model.Quiz{ID: id}, nil
}

func (m *mockCardService) CreateQuiz(ctx context.Context, in cards.QuizInput) (*model.Quiz, error) {
	if m.createQuizFn != nil {
		return m.createQuizFn(ctx, in)
	}
	quiz := &model.Quiz{ID: "quiz-1", ArtigoID: in.ArtigoID, Statement: in.Statement, Status: true}
	if in.Answer != nil {
		quiz.Answer = *in.Answer
	}
	return quiz, nil
}

func (m *mockCardService) UpdateQuiz(ctx context.Context, id string, in cards.QuizInput) (*model.Quiz, error) {
	if m.updateQuizFn != nil {
		return m.updateQuizFn(ctx, id, in)
	}
	return &model.Quiz{ID: id, Statement: in.Statement}, nil
}

func (m *mockCardService) SetStatus(ctx context.Context, kind model.Kind, id string, status bool) error {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, kind, id, status)
	}
	return nil
}

type mockImportService struct {
	importFn func(ctx context.Context, kind model.Kind, r io.Reader) (*importer.Result, error)
}

func (m *mockImportService) Import(ctx context.Context, kind model.Kind, r io.Reader) (*importer.Result, error) {
	if m.importFn != nil {
		return m.importFn(ctx, kind, r)
	}
	return &importer.Result{Kind: kind}, nil
}

type mockPurchaseService struct {
	handleWebhookFn func(ctx context.Context, hottok string, body []byte) (*model.Purchase, error)
	listForEmailFn  func(ctx context.Context, email string) ([]*model.Purchase, error)
}

func (m *mockPurchaseService) HandleWebhook(ctx context.Context, hottok string, body []byte) (*model.Purchase, error) {
	if m.handleWebhookFn != nil {
		return m.handleWebhookFn(ctx, hottok, body)
	}
	return &model.Purchase{TransactionID: "HP-1", Status: model.PurchaseStatusActive}, nil
}

func (m *mockPurchaseService) ListForEmail(ctx context.Context, email string) ([]*model.Purchase, error) {
	if m.listForEmailFn != nil {
		return m.listForEmailFn(ctx, email)
	}
	return []*model.Purchase{}, nil
}

type mockReportService struct {
	createFn func(ctx context.Context, userID string, in report.Input) (*model.Report, []model.Warning, error)
}

func (m *mockReportService) Create(ctx context.Context, userID string, in report.Input) (*model.Report, []model.Warning, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return &model.Report{ID: "report-1", UserID: userID, Kind: model.Kind(in.Kind), ItemID: in.ItemID}, nil, nil
}

type mockUserService struct {
	withdrawFn func(ctx context.Context, userID, sessionID string) error
}

func (m *mockUserService) Withdraw(ctx context.Context, userID, sessionID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID, sessionID)
	}
	return nil
}

// --- テストヘルパー ---

const (
	testItemID  = "8f14e45f-ceea-4e7a-9a3b-1c2d3e4f5a6b"
	testComboID = "c9f0f895-fb98-4b91-8e1a-2b3c4d5e6f70"
)

// withViewer はテスト用にリクエストコンテキストにユーザーIDとセッションIDを注入するヘルパー。
func withViewer(r *http.Request, userID, sessionID string) *http.Request {
	return r.WithContext(middleware.ContextWithSession(r.Context(), userID, sessionID))
}

// withURLParams はテスト用にchiのURLパラメータを注入するヘルパー。
// kvはキーと値を交互に並べる。
func withURLParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// decodeErrorBody はレスポンスボディを統一エラーフォーマットとしてパースする。
func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return body
}

// decodeBody はレスポンスボディをvにパースする。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
