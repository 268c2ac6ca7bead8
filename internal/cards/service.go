// Package cards は管理画面向けのフラッシュカード・クイズ管理機能を提供する。
package cards

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/security"
	"github.com/hitoshi/jusmemoriza/internal/validation"
)

// FlashcardInput はフラッシュカードの作成・更新の入力。fundamentoはMarkdown。
type FlashcardInput struct {
	ArtigoID   string `json:"artigo_id" validate:"required,uuid"`
	Front      string `json:"front" validate:"required,max=4000"`
	Back       string `json:"back" validate:"required,max=4000"`
	Fundamento string `json:"fundamento" validate:"max=20000"`
}

// QuizInput はクイズの作成・更新の入力。answerはtrueでCerto。
type QuizInput struct {
	ArtigoID   string `json:"artigo_id" validate:"required,uuid"`
	Statement  string `json:"statement" validate:"required,max=4000"`
	Answer     *bool  `json:"answer" validate:"required"`
	Fundamento string `json:"fundamento" validate:"max=20000"`
}

// Service はカード管理のサービス。
type Service struct {
	cardRepo     repository.CardRepository
	taxonomyRepo repository.TaxonomyRepository
	sanitizer    security.ContentSanitizerService
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	cardRepo repository.CardRepository,
	taxonomyRepo repository.TaxonomyRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		cardRepo:     cardRepo,
		taxonomyRepo: taxonomyRepo,
		sanitizer:    sanitizer,
		now:          time.Now,
	}
}

// GetFlashcard はフラッシュカードを返す。
func (s *Service) GetFlashcard(ctx context.Context, id string) (*model.Flashcard, error) {
	if validation.Var("id", id, "uuid") != nil {
		return nil, model.NewItemNotFoundError(id)
	}
	card, err := s.cardRepo.FindFlashcard(ctx, id)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return card, nil
}

// CreateFlashcard はフラッシュカードを作成する。
func (s *Service) CreateFlashcard(ctx context.Context, in FlashcardInput) (*model.Flashcard, error) {
	card, err := s.prepareFlashcard(ctx, in)
	if err != nil {
		return nil, err
	}
	card.ID = uuid.NewString()
	card.Status = true
	card.CreatedAt = s.now()
	card.UpdatedAt = card.CreatedAt
	if err := s.cardRepo.CreateFlashcard(ctx, card); err != nil {
		return nil, err
	}
	return card, nil
}

// UpdateFlashcard はフラッシュカードの内容を更新する。状態は変更しない。
func (s *Service) UpdateFlashcard(ctx context.Context, id string, in FlashcardInput) (*model.Flashcard, error) {
	if _, err := s.GetFlashcard(ctx, id); err != nil {
		return nil, err
	}
	card, err := s.prepareFlashcard(ctx, in)
	if err != nil {
		return nil, err
	}
	card.ID = id
	ok, err := s.cardRepo.UpdateFlashcard(ctx, card)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewItemNotFoundError(id)
	}
	return s.GetFlashcard(ctx, id)
}

// GetQuiz はクイズを返す。
func (s *Service) GetQuiz(ctx context.Context, id string) (*model.Quiz, error) {
	if validation.Var("id", id, "uuid") != nil {
		return nil, model.NewItemNotFoundError(id)
	}
	quiz, err := s.cardRepo.FindQuiz(ctx, id)
	if err != nil {
		return nil, err
	}
	if quiz == nil {
		return nil, model.NewItemNotFoundError(id)
	}
	return quiz, nil
}

// CreateQuiz はクイズを作成する。
func (s *Service) CreateQuiz(ctx context.Context, in QuizInput) (*model.Quiz, error) {
	quiz, err := s.prepareQuiz(ctx, in)
	if err != nil {
		return nil, err
	}
	quiz.ID = uuid.NewString()
	quiz.Status = true
	quiz.CreatedAt = s.now()
	quiz.UpdatedAt = quiz.CreatedAt
	if err := s.cardRepo.CreateQuiz(ctx, quiz); err != nil {
		return nil, err
	}
	return quiz, nil
}

// UpdateQuiz はクイズの内容を更新する。
func (s *Service) UpdateQuiz(ctx context.Context, id string, in QuizInput) (*model.Quiz, error) {
	if _, err := s.GetQuiz(ctx, id); err != nil {
		return nil, err
	}
	quiz, err := s.prepareQuiz(ctx, in)
	if err != nil {
		return nil, err
	}
	quiz.ID = id
	ok, err := s.cardRepo.UpdateQuiz(ctx, quiz)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewItemNotFoundError(id)
	}
	return s.GetQuiz(ctx, id)
}

// SetStatus はカードを有効化・無効化する。
func (s *Service) SetStatus(ctx context.Context, kind model.Kind, id string, status bool) error {
	if validation.Var("id", id, "uuid") != nil {
		return model.NewItemNotFoundError(id)
	}
	ok, err := s.cardRepo.SetStatus(ctx, kind, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewItemNotFoundError(id)
	}
	return nil
}

func (s *Service) prepareFlashcard(ctx context.Context, in FlashcardInput) (*model.Flashcard, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.ensureArtigo(ctx, in.ArtigoID); err != nil {
		return nil, err
	}
	front, back := s.sanitizer.Text(in.Front), s.sanitizer.Text(in.Back)
	var fields []model.FieldError
	if front == "" {
		fields = append(fields, model.FieldError{Field: "front", Message: "campo obrigatório"})
	}
	if back == "" {
		fields = append(fields, model.FieldError{Field: "back", Message: "campo obrigatório"})
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields...)
	}
	fundamento, err := s.sanitizer.Markdown(in.Fundamento)
	if err != nil {
		return nil, model.NewValidationError(model.FieldError{Field: "fundamento", Message: "markdown inválido"})
	}
	return &model.Flashcard{
		ArtigoID:   in.ArtigoID,
		Front:      front,
		Back:       back,
		Fundamento: fundamento,
	}, nil
}

func (s *Service) prepareQuiz(ctx context.Context, in QuizInput) (*model.Quiz, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := s.ensureArtigo(ctx, in.ArtigoID); err != nil {
		return nil, err
	}
	statement := s.sanitizer.Text(in.Statement)
	if statement == "" {
		return nil, model.NewValidationError(model.FieldError{Field: "statement", Message: "campo obrigatório"})
	}
	fundamento, err := s.sanitizer.Markdown(in.Fundamento)
	if err != nil {
		return nil, model.NewValidationError(model.FieldError{Field: "fundamento", Message: "markdown inválido"})
	}
	return &model.Quiz{
		ArtigoID:   in.ArtigoID,
		Statement:  statement,
		Answer:     *in.Answer,
		Fundamento: fundamento,
	}, nil
}

func (s *Service) ensureArtigo(ctx context.Context, artigoID string) error {
	artigo, err := s.taxonomyRepo.FindByID(ctx, model.LevelArtigo, artigoID)
	if err != nil {
		return err
	}
	if artigo == nil {
		return model.NewTaxonomyNotFoundError(model.LevelArtigo, artigoID)
	}
	return nil
}
