package handler

import (
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
)

// studyItemResponse は学習アイテムのレスポンス。
type studyItemResponse struct {
	ID           string `json:"id"`
	Front        string `json:"front"`
	Back         string `json:"back"`
	Fundamento   string `json:"fundamento"`
	MateriaName  string `json:"materia_name"`
	MateriaColor string `json:"materia_color,omitempty"`
	LeiName      string `json:"lei_name"`
	IsFavorite   bool   `json:"is_favorite"`
	LastAnswer   string `json:"last_answer,omitempty"`
}

// deckResponse は学習デッキのレスポンス。
type deckResponse struct {
	Kind   string              `json:"kind"`
	Mode   string              `json:"mode"`
	Page   int                 `json:"page"`
	Cached bool                `json:"cached"`
	Items  []studyItemResponse `json:"items"`
}

// comboResponse はコンボのレスポンス。
type comboResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	ImageURL    string   `json:"image_url,omitempty"`
	Status      *bool    `json:"status,omitempty"`
	LeiIDs      []string `json:"lei_ids,omitempty"`
}

// comboDetailResponse はコンボ詳細（所属Lei付き）のレスポンス。
type comboDetailResponse struct {
	comboResponse
	Leis []model.FilterOption `json:"leis"`
}

// nodeResponse は分類ノードのレスポンス。
type nodeResponse struct {
	ID        string    `json:"id"`
	Level     string    `json:"level"`
	ParentID  string    `json:"parent_id,omitempty"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	Body      string    `json:"body,omitempty"`
	Status    bool      `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// flashcardResponse はフラッシュカードのレスポンス。
type flashcardResponse struct {
	ID         string    `json:"id"`
	ArtigoID   string    `json:"artigo_id"`
	Front      string    `json:"front"`
	Back       string    `json:"back"`
	Fundamento string    `json:"fundamento"`
	Status     bool      `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// quizResponse はクイズのレスポンス。
type quizResponse struct {
	ID         string    `json:"id"`
	ArtigoID   string    `json:"artigo_id"`
	Statement  string    `json:"statement"`
	Answer     bool      `json:"answer"`
	Fundamento string    `json:"fundamento"`
	Status     bool      `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// purchaseResponse は購入レコードのレスポンス。
type purchaseResponse struct {
	TransactionID string     `json:"transaction_id"`
	ProductID     string     `json:"product_id"`
	ProductName   string     `json:"product_name"`
	Status        string     `json:"status"`
	PurchasedAt   *time.Time `json:"purchased_at,omitempty"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toStudyItemResponses(items []model.StudyItem) []studyItemResponse {
	out := make([]studyItemResponse, len(items))
	for i, it := range items {
		out[i] = studyItemResponse{
			ID:           it.ID,
			Front:        it.Front,
			Back:         it.Back,
			Fundamento:   it.Fundamento,
			MateriaName:  it.MateriaName,
			MateriaColor: it.MateriaColor,
			LeiName:      it.LeiName,
			IsFavorite:   it.IsFavorite,
			LastAnswer:   string(it.LastAnswer),
		}
	}
	return out
}

// toComboResponse は公開向けのコンボレスポンスに変換する。
// 画像がある場合のみ image_url を設定する。
func toComboResponse(c *model.Combo) comboResponse {
	resp := comboResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
	}
	if c.ImageMime != "" {
		resp.ImageURL = "/api/combos/" + c.ID + "/image"
	}
	return resp
}

// toAdminComboResponse は管理画面向けに状態とLeiIDを含めて変換する。
func toAdminComboResponse(c *model.Combo) comboResponse {
	resp := toComboResponse(c)
	status := c.Status
	resp.Status = &status
	resp.LeiIDs = c.LeiIDs
	if resp.LeiIDs == nil {
		resp.LeiIDs = []string{}
	}
	return resp
}

func toNodeResponse(n *model.TaxonomyNode) nodeResponse {
	return nodeResponse{
		ID:        n.ID,
		Level:     string(n.Level),
		ParentID:  n.ParentID,
		Name:      n.Name,
		Color:     n.Color,
		Body:      n.Body,
		Status:    n.Status,
		UpdatedAt: n.UpdatedAt,
	}
}

func toFlashcardResponse(c *model.Flashcard) flashcardResponse {
	return flashcardResponse{
		ID:         c.ID,
		ArtigoID:   c.ArtigoID,
		Front:      c.Front,
		Back:       c.Back,
		Fundamento: c.Fundamento,
		Status:     c.Status,
		UpdatedAt:  c.UpdatedAt,
	}
}

func toQuizResponse(q *model.Quiz) quizResponse {
	return quizResponse{
		ID:         q.ID,
		ArtigoID:   q.ArtigoID,
		Statement:  q.Statement,
		Answer:     q.Answer,
		Fundamento: q.Fundamento,
		Status:     q.Status,
		UpdatedAt:  q.UpdatedAt,
	}
}

func toPurchaseResponses(list []*model.Purchase) []purchaseResponse {
	out := make([]purchaseResponse, len(list))
	for i, p := range list {
		out[i] = purchaseResponse{
			TransactionID: p.TransactionID,
			ProductID:     p.ProductID,
			ProductName:   p.ProductName,
			Status:        string(p.Status),
			PurchasedAt:   p.PurchasedAt,
			ExpiresAt:     p.ExpiresAt,
			UpdatedAt:     p.UpdatedAt,
		}
	}
	return out
}
