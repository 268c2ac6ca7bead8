package study

import (
	"context"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
)

// --- テスト用モック ---

type mockStudyRepo struct {
	listDeckFn   func(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter, mode model.StudyMode, page int) ([]model.StudyItem, error)
	progressFn   func(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error)
	itemExistsFn func(ctx context.Context, kind model.Kind, id string) (bool, error)
	listCalls    int
}

func (m *mockStudyRepo) ListDeck(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter, mode model.StudyMode, page int) ([]model.StudyItem, error) {
	m.listCalls++
	if m.listDeckFn != nil {
		return m.listDeckFn(ctx, userID, kind, filter, mode, page)
	}
	return nil, nil
}

func (m *mockStudyRepo) Progress(ctx context.Context, userID string, kind model.Kind, filter model.StudyFilter) (*model.Progress, error) {
	if m.progressFn != nil {
		return m.progressFn(ctx, userID, kind, filter)
	}
	return &model.Progress{}, nil
}

func (m *mockStudyRepo) ItemExists(ctx context.Context, kind model.Kind, id string) (bool, error) {
	if m.itemExistsFn != nil {
		return m.itemExistsFn(ctx, kind, id)
	}
	return true, nil
}

type mockMarkRepo struct {
	answers   []*model.Answer
	favorites map[string]bool
	ignored   map[string]bool
	insertErr error
}

func newMockMarkRepo() *mockMarkRepo {
	return &mockMarkRepo{
		favorites: make(map[string]bool),
		ignored:   make(map[string]bool),
	}
}

func (m *mockMarkRepo) InsertAnswer(_ context.Context, _ model.Kind, answer *model.Answer) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	answer.Seq = int64(len(m.answers) + 1)
	m.answers = append(m.answers, answer)
	return nil
}

func (m *mockMarkRepo) SetFavorite(_ context.Context, _ model.Kind, userID, itemID string, favorite bool) error {
	key := userID + "|" + itemID
	if favorite {
		m.favorites[key] = true
	} else {
		delete(m.favorites, key)
	}
	return nil
}

func (m *mockMarkRepo) Ignore(_ context.Context, _ model.Kind, userID, itemID string) error {
	m.ignored[userID+"|"+itemID] = true
	return nil
}

type mockComboRepo struct {
	combos map[string]*model.Combo
}

func (m *mockComboRepo) ListActive(context.Context) ([]*model.Combo, error) { return nil, nil }

func (m *mockComboRepo) FindByID(_ context.Context, id string) (*model.Combo, error) {
	return m.combos[id], nil
}

func (m *mockComboRepo) Create(context.Context, *model.Combo) error { return nil }

func (m *mockComboRepo) Update(context.Context, *model.Combo) (bool, error) { return false, nil }

func (m *mockComboRepo) SetStatus(context.Context, string, bool) (bool, error) { return false, nil }

func (m *mockComboRepo) ReplaceLeis(context.Context, string, []string) (bool, error) {
	return false, nil
}

func (m *mockComboRepo) SetImage(context.Context, string, []byte, string) (bool, error) {
	return false, nil
}

func (m *mockComboRepo) FindImage(context.Context, string) ([]byte, string, error) {
	return nil, "", nil
}

var (
	_ repository.StudyRepository = (*mockStudyRepo)(nil)
	_ repository.MarkRepository  = (*mockMarkRepo)(nil)
	_ repository.ComboRepository = (*mockComboRepo)(nil)
)
