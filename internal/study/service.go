// Package study は学習デッキの抽出、進捗集計、回答・マーク操作を提供する。
package study

import (
	"context"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/studycache"
)

// Viewer は操作中のユーザーとセッション。
// キャッシュはセッション単位、回答・マークはユーザー単位で扱う。
type Viewer struct {
	UserID    string
	SessionID string
}

// DeckRequest はデッキ取得の条件。
type DeckRequest struct {
	Kind    model.Kind
	Mode    model.StudyMode
	Filter  model.StudyFilter
	Page    int
	Refresh bool // trueの場合はキャッシュを読まずに再抽出する
}

// DeckResult はデッキ取得の結果。
type DeckResult struct {
	Items  []model.StudyItem
	Page   int
	Cached bool
}

// Service は学習機能のサービス。
type Service struct {
	studyRepo repository.StudyRepository
	markRepo  repository.MarkRepository
	comboRepo repository.ComboRepository
	cache     *studycache.Cache
	metrics   metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
// cacheがnilの場合はキャッシュを使わない。mがnilの場合はメトリクスを記録しない。
func NewService(
	studyRepo repository.StudyRepository,
	markRepo repository.MarkRepository,
	comboRepo repository.ComboRepository,
	cache *studycache.Cache,
	m metrics.MetricsCollector,
) *Service {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Service{
		studyRepo: studyRepo,
		markRepo:  markRepo,
		comboRepo: comboRepo,
		cache:     cache,
		metrics:   m,
	}
}

// Deck はフィルタとモードに合うアイテムを最大10件返す。
// 同じキーで直前に取得したデッキがセッションに残っていればそれを返す。
func (s *Service) Deck(ctx context.Context, v Viewer, req DeckRequest) (*DeckResult, error) {
	if err := s.ensureCombo(ctx, req.Filter.ComboID); err != nil {
		return nil, err
	}
	page := req.Page
	if page < 1 {
		page = 1
	}

	key := CacheKey(req.Kind, req.Mode, req.Filter, page)
	if s.cache != nil && !req.Refresh {
		if items, ok := s.cache.Get(v.SessionID, key); ok {
			s.metrics.RecordCacheLookup(true)
			return &DeckResult{Items: items, Page: page, Cached: true}, nil
		}
		s.metrics.RecordCacheLookup(false)
	}

	items, err := s.studyRepo.ListDeck(ctx, v.UserID, req.Kind, req.Filter, req.Mode, page)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []model.StudyItem{}
	}
	if s.cache != nil {
		s.cache.Put(v.SessionID, key, items)
	}
	return &DeckResult{Items: items, Page: page}, nil
}

// Progress はフィルタ範囲の進捗を返す。
func (s *Service) Progress(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error) {
	if err := s.ensureCombo(ctx, filter.ComboID); err != nil {
		return nil, err
	}
	return s.studyRepo.Progress(ctx, userID, kind, filter)
}

// Answer は回答を追記する。過去の回答は変更しない。
// ラベルが不正な場合は検証エラー、アイテムが存在しない場合はITEM_NOT_FOUNDを返す。
func (s *Service) Answer(ctx context.Context, v Viewer, kind model.Kind, itemID, answer string) (*model.Answer, error) {
	label, err := model.ParseAnswerLabel(answer)
	if err != nil {
		return nil, err
	}
	if err := s.ensureItem(ctx, kind, itemID); err != nil {
		return nil, err
	}

	rec := &model.Answer{
		ID:     uuid.NewString(),
		UserID: v.UserID,
		ItemID: itemID,
		Label:  label,
	}
	if err := s.markRepo.InsertAnswer(ctx, kind, rec); err != nil {
		return nil, err
	}

	s.metrics.RecordAnswer(string(kind), string(label))
	if s.cache != nil {
		s.cache.RemoveItem(v.SessionID, itemID)
	}
	return rec, nil
}

// SetFavorite はお気に入りマークを冪等に付与・解除する。
func (s *Service) SetFavorite(ctx context.Context, v Viewer, kind model.Kind, itemID string, favorite bool) error {
	if err := s.ensureItem(ctx, kind, itemID); err != nil {
		return err
	}
	if err := s.markRepo.SetFavorite(ctx, kind, v.UserID, itemID, favorite); err != nil {
		return err
	}

	mark := "favorite_off"
	if favorite {
		mark = "favorite_on"
	}
	s.metrics.RecordMark(string(kind), mark)
	if s.cache != nil {
		s.cache.PatchFavorite(v.SessionID, itemID, favorite)
	}
	return nil
}

// Ignore はアイテムをユーザーのデッキから除外する。解除の操作はない。
func (s *Service) Ignore(ctx context.Context, v Viewer, kind model.Kind, itemID string) error {
	if err := s.ensureItem(ctx, kind, itemID); err != nil {
		return err
	}
	if err := s.markRepo.Ignore(ctx, kind, v.UserID, itemID); err != nil {
		return err
	}

	s.metrics.RecordMark(string(kind), "ignore")
	if s.cache != nil {
		s.cache.RemoveItem(v.SessionID, itemID)
	}
	return nil
}

// ensureCombo はコンボ指定がある場合に有効なコンボが存在するか確認する。
func (s *Service) ensureCombo(ctx context.Context, comboID string) error {
	if comboID == "" {
		return nil
	}
	if !IsValidID(comboID) {
		return model.NewComboNotFoundError(comboID)
	}
	combo, err := s.comboRepo.FindByID(ctx, comboID)
	if err != nil {
		return err
	}
	if combo == nil || !combo.Status {
		return model.NewComboNotFoundError(comboID)
	}
	return nil
}

func (s *Service) ensureItem(ctx context.Context, kind model.Kind, itemID string) error {
	if !IsValidID(itemID) {
		return model.NewItemNotFoundError(itemID)
	}
	ok, err := s.studyRepo.ItemExists(ctx, kind, itemID)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewItemNotFoundError(itemID)
	}
	return nil
}
