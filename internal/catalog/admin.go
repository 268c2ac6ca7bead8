package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/validation"
)

// NodeInput は分類ノードの作成・更新の入力。
// Materiaでは ParentID を指定せず、それ以外のレベルでは必須。
type NodeInput struct {
	ParentID string `json:"parent_id" validate:"omitempty,uuid"`
	Name     string `json:"name" validate:"required,max=200"`
	Color    string `json:"color" validate:"omitempty,hexcolor"`
	Body     string `json:"body" validate:"max=20000"`
}

// ComboInput はコンボの作成・更新の入力。
type ComboInput struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

// LeisInput はコンボ所属Leiの置き換え入力。
type LeisInput struct {
	LeiIDs []string `json:"lei_ids" validate:"max=500,dive,uuid"`
}

// GetNode は分類ノードを返す。無効なノードも返す（管理画面用）。
func (s *Service) GetNode(ctx context.Context, level model.Level, id string) (*model.TaxonomyNode, error) {
	if validation.Var("id", id, "uuid") != nil {
		return nil, model.NewTaxonomyNotFoundError(level, id)
	}
	node, err := s.taxonomyRepo.FindByID(ctx, level, id)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, model.NewTaxonomyNotFoundError(level, id)
	}
	return node, nil
}

// CreateNode は分類ノードを作成する。親の存在と同一親での名前重複を検証する。
func (s *Service) CreateNode(ctx context.Context, level model.Level, in NodeInput) (*model.TaxonomyNode, error) {
	node, err := s.prepareNode(ctx, level, in)
	if err != nil {
		return nil, err
	}
	node.ID = uuid.NewString()
	node.Status = true
	node.CreatedAt = s.now()
	node.UpdatedAt = node.CreatedAt
	if err := s.taxonomyRepo.Create(ctx, node); err != nil {
		return nil, mapDuplicate(err, node.Name)
	}
	return node, nil
}

// UpdateNode は分類ノードの名前・親・付帯属性を更新する。状態は変更しない。
func (s *Service) UpdateNode(ctx context.Context, level model.Level, id string, in NodeInput) (*model.TaxonomyNode, error) {
	if _, err := s.GetNode(ctx, level, id); err != nil {
		return nil, err
	}
	node, err := s.prepareNode(ctx, level, in)
	if err != nil {
		return nil, err
	}
	node.ID = id
	ok, err := s.taxonomyRepo.Update(ctx, node)
	if err != nil {
		return nil, mapDuplicate(err, node.Name)
	}
	if !ok {
		return nil, model.NewTaxonomyNotFoundError(level, id)
	}
	return s.GetNode(ctx, level, id)
}

// SetNodeStatus は分類ノードを有効化・無効化する。削除は行わない。
func (s *Service) SetNodeStatus(ctx context.Context, level model.Level, id string, status bool) error {
	if validation.Var("id", id, "uuid") != nil {
		return model.NewTaxonomyNotFoundError(level, id)
	}
	ok, err := s.taxonomyRepo.SetStatus(ctx, level, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewTaxonomyNotFoundError(level, id)
	}
	return nil
}

func (s *Service) prepareNode(ctx context.Context, level model.Level, in NodeInput) (*model.TaxonomyNode, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	parent := level.Parent()
	switch {
	case parent == "" && in.ParentID != "":
		return nil, model.NewValidationError(model.FieldError{Field: "parent_id", Message: "matéria não possui nível superior"})
	case parent != "" && in.ParentID == "":
		return nil, model.NewValidationError(model.FieldError{Field: "parent_id", Message: "campo obrigatório"})
	case parent != "":
		p, err := s.taxonomyRepo.FindByID(ctx, parent, in.ParentID)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, model.NewTaxonomyNotFoundError(parent, in.ParentID)
		}
	}

	name := s.sanitizer.Text(in.Name)
	if name == "" {
		return nil, model.NewValidationError(model.FieldError{Field: "name", Message: "campo obrigatório"})
	}
	node := &model.TaxonomyNode{
		Level:    level,
		ParentID: in.ParentID,
		Name:     name,
	}
	if level == model.LevelMateria {
		node.Color = in.Color
	}
	if level == model.LevelArtigo {
		node.Body = s.sanitizer.Text(in.Body)
	}
	return node, nil
}

// GetComboAdmin はコンボを状態に関係なく返す。
func (s *Service) GetComboAdmin(ctx context.Context, id string) (*model.Combo, error) {
	if validation.Var("id", id, "uuid") != nil {
		return nil, model.NewComboNotFoundError(id)
	}
	combo, err := s.comboRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if combo == nil {
		return nil, model.NewComboNotFoundError(id)
	}
	return combo, nil
}

// CreateCombo はコンボを作成する。
func (s *Service) CreateCombo(ctx context.Context, in ComboInput) (*model.Combo, error) {
	combo, err := s.prepareCombo(in)
	if err != nil {
		return nil, err
	}
	combo.ID = uuid.NewString()
	combo.Status = true
	combo.CreatedAt = s.now()
	combo.UpdatedAt = combo.CreatedAt
	if err := s.comboRepo.Create(ctx, combo); err != nil {
		return nil, mapDuplicate(err, combo.Name)
	}
	return combo, nil
}

// UpdateCombo はコンボの名前と説明を更新する。
func (s *Service) UpdateCombo(ctx context.Context, id string, in ComboInput) (*model.Combo, error) {
	if _, err := s.GetComboAdmin(ctx, id); err != nil {
		return nil, err
	}
	combo, err := s.prepareCombo(in)
	if err != nil {
		return nil, err
	}
	combo.ID = id
	ok, err := s.comboRepo.Update(ctx, combo)
	if err != nil {
		return nil, mapDuplicate(err, combo.Name)
	}
	if !ok {
		return nil, model.NewComboNotFoundError(id)
	}
	return s.GetComboAdmin(ctx, id)
}

// SetComboStatus はコンボを有効化・無効化する。
func (s *Service) SetComboStatus(ctx context.Context, id string, status bool) error {
	if validation.Var("id", id, "uuid") != nil {
		return model.NewComboNotFoundError(id)
	}
	ok, err := s.comboRepo.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return model.NewComboNotFoundError(id)
	}
	return nil
}

// ReplaceComboLeis はコンボの所属Leiを置き換える。存在しないLeiが含まれる場合は検証エラー。
func (s *Service) ReplaceComboLeis(ctx context.Context, id string, in LeisInput) (*model.Combo, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.GetComboAdmin(ctx, id); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(in.LeiIDs))
	ids := make([]string, 0, len(in.LeiIDs))
	var fields []model.FieldError
	for _, leiID := range in.LeiIDs {
		if seen[leiID] {
			continue
		}
		seen[leiID] = true
		lei, err := s.taxonomyRepo.FindByID(ctx, model.LevelLei, leiID)
		if err != nil {
			return nil, err
		}
		if lei == nil {
			fields = append(fields, model.FieldError{Field: "lei_ids", Message: "lei inexistente: " + leiID})
			continue
		}
		ids = append(ids, leiID)
	}
	if len(fields) > 0 {
		return nil, model.NewValidationError(fields...)
	}

	ok, err := s.comboRepo.ReplaceLeis(ctx, id, ids)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewComboNotFoundError(id)
	}
	return s.GetComboAdmin(ctx, id)
}

func (s *Service) prepareCombo(in ComboInput) (*model.Combo, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	name := s.sanitizer.Text(in.Name)
	if name == "" {
		return nil, model.NewValidationError(model.FieldError{Field: "name", Message: "campo obrigatório"})
	}
	return &model.Combo{
		Name:        name,
		Description: s.sanitizer.Text(in.Description),
	}, nil
}
