// Package catalog はコンボと分類5階層の参照・管理機能を提供する。
package catalog

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/security"
	"github.com/hitoshi/jusmemoriza/internal/validation"
)

// Service はコンボ・分類のサービス。
type Service struct {
	taxonomyRepo repository.TaxonomyRepository
	comboRepo    repository.ComboRepository
	sanitizer    security.ContentSanitizerService
	now          func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	taxonomyRepo repository.TaxonomyRepository,
	comboRepo repository.ComboRepository,
	sanitizer security.ContentSanitizerService,
) *Service {
	return &Service{
		taxonomyRepo: taxonomyRepo,
		comboRepo:    comboRepo,
		sanitizer:    sanitizer,
		now:          time.Now,
	}
}

// ComboDetail はコンボと所属Leiの一覧。
type ComboDetail struct {
	Combo *model.Combo
	Leis  []model.FilterOption
}

// ListCombos は有効なコンボを返す。
func (s *Service) ListCombos(ctx context.Context) ([]*model.Combo, error) {
	combos, err := s.comboRepo.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	if combos == nil {
		combos = []*model.Combo{}
	}
	return combos, nil
}

// GetCombo は有効なコンボを所属Lei付きで返す。存在しない・無効な場合はCOMBO_NOT_FOUND。
func (s *Service) GetCombo(ctx context.Context, id string) (*ComboDetail, error) {
	combo, err := s.activeCombo(ctx, id)
	if err != nil {
		return nil, err
	}
	leis, err := s.taxonomyRepo.ListOptions(ctx, model.LevelLei, id)
	if err != nil {
		return nil, err
	}
	return &ComboDetail{Combo: combo, Leis: nonNil(leis)}, nil
}

// FilterOptions はコンボ配下の5階層の選択肢を並行に取得して返す。
// comboIDが空の場合は全コンボ配下を対象とする。
func (s *Service) FilterOptions(ctx context.Context, comboID string) (*model.FilterOptions, error) {
	if comboID != "" {
		if _, err := s.activeCombo(ctx, comboID); err != nil {
			return nil, err
		}
	}

	opts := &model.FilterOptions{}
	targets := []struct {
		level model.Level
		dst   *[]model.FilterOption
	}{
		{model.LevelMateria, &opts.Materias},
		{model.LevelLei, &opts.Leis},
		{model.LevelTitulo, &opts.Titulos},
		{model.LevelCapitulo, &opts.Capitulos},
		{model.LevelArtigo, &opts.Artigos},
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, target := range targets {
		g.Go(func() error {
			list, err := s.taxonomyRepo.ListOptions(gctx, target.level, comboID)
			if err != nil {
				return err
			}
			*target.dst = nonNil(list)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return opts, nil
}

func (s *Service) activeCombo(ctx context.Context, id string) (*model.Combo, error) {
	if validation.Var("id", id, "uuid") != nil {
		return nil, model.NewComboNotFoundError(id)
	}
	combo, err := s.comboRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if combo == nil || !combo.Status {
		return nil, model.NewComboNotFoundError(id)
	}
	return combo, nil
}

// mapDuplicate はリポジトリの一意制約違反をDUPLICATE_NAMEに変換する。
func mapDuplicate(err error, name string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return model.NewDuplicateNameError(name)
	}
	return err
}

func nonNil(list []model.FilterOption) []model.FilterOption {
	if list == nil {
		return []model.FilterOption{}
	}
	return list
}
