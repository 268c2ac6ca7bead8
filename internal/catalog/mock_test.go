package catalog

import (
	"context"
	"sync"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
)

// mockTaxonomyRepo はメモリ上で分類ノードを保持するモック。
type mockTaxonomyRepo struct {
	mu            sync.Mutex
	nodes         map[string]*model.TaxonomyNode
	createErr     error
	listOptionsFn func(ctx context.Context, level model.Level, comboID string) ([]model.FilterOption, error)
}

func newMockTaxonomyRepo(nodes ...*model.TaxonomyNode) *mockTaxonomyRepo {
	m := &mockTaxonomyRepo{nodes: make(map[string]*model.TaxonomyNode)}
	for _, n := range nodes {
		m.nodes[n.ID] = n
	}
	return m
}

func (m *mockTaxonomyRepo) FindByID(_ context.Context, level model.Level, id string) (*model.TaxonomyNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok || n.Level != level {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (m *mockTaxonomyRepo) Create(_ context.Context, node *model.TaxonomyNode) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *node
	m.nodes[node.ID] = &cp
	return nil
}

func (m *mockTaxonomyRepo) Update(_ context.Context, node *model.TaxonomyNode) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.nodes[node.ID]
	if !ok {
		return false, nil
	}
	existing.Name = node.Name
	existing.ParentID = node.ParentID
	existing.Color = node.Color
	existing.Body = node.Body
	return true, nil
}

func (m *mockTaxonomyRepo) SetStatus(_ context.Context, level model.Level, id string, status bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok || n.Level != level {
		return false, nil
	}
	n.Status = status
	return true, nil
}

func (m *mockTaxonomyRepo) ListOptions(ctx context.Context, level model.Level, comboID string) ([]model.FilterOption, error) {
	if m.listOptionsFn != nil {
		return m.listOptionsFn(ctx, level, comboID)
	}
	return nil, nil
}

// mockComboRepo はメモリ上でコンボを保持するモック。
type mockComboRepo struct {
	combos    map[string]*model.Combo
	createErr error
	updateErr error
	replaced  []string
}

func newMockComboRepo(combos ...*model.Combo) *mockComboRepo {
	m := &mockComboRepo{combos: make(map[string]*model.Combo)}
	for _, c := range combos {
		m.combos[c.ID] = c
	}
	return m
}

func (m *mockComboRepo) ListActive(context.Context) ([]*model.Combo, error) {
	var out []*model.Combo
	for _, c := range m.combos {
		if c.Status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockComboRepo) FindByID(_ context.Context, id string) (*model.Combo, error) {
	c, ok := m.combos[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockComboRepo) Create(_ context.Context, combo *model.Combo) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.combos[combo.ID] = combo
	return nil
}

func (m *mockComboRepo) Update(_ context.Context, combo *model.Combo) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	c, ok := m.combos[combo.ID]
	if !ok {
		return false, nil
	}
	c.Name = combo.Name
	c.Description = combo.Description
	return true, nil
}

func (m *mockComboRepo) SetStatus(_ context.Context, id string, status bool) (bool, error) {
	c, ok := m.combos[id]
	if !ok {
		return false, nil
	}
	c.Status = status
	return true, nil
}

func (m *mockComboRepo) ReplaceLeis(_ context.Context, comboID string, leiIDs []string) (bool, error) {
	c, ok := m.combos[comboID]
	if !ok {
		return false, nil
	}
	m.replaced = leiIDs
	c.LeiIDs = leiIDs
	return true, nil
}

func (m *mockComboRepo) SetImage(context.Context, string, []byte, string) (bool, error) {
	return false, nil
}

func (m *mockComboRepo) FindImage(context.Context, string) ([]byte, string, error) {
	return nil, "", nil
}

var (
	_ repository.TaxonomyRepository = (*mockTaxonomyRepo)(nil)
	_ repository.ComboRepository    = (*mockComboRepo)(nil)
)
