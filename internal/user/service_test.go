package user

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/studycache"
)

type mockUserRepo struct {
	withdrawFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	return nil
}
func (m *mockUserRepo) Withdraw(ctx context.Context, id string) error {
	return m.withdrawFn(ctx, id)
}

var _ repository.UserRepository = (*mockUserRepo)(nil)

func TestService_Withdraw(t *testing.T) {
	tests := []struct {
		name       string
		repoErr    error
		sessionID  string
		wantCode   string
		wantErr    bool
		wantCached int
	}{
		{name: "deletes and drops session cache", sessionID: "sess-1", wantCached: 0},
		{name: "without session keeps other slots", sessionID: "", wantCached: 1},
		{name: "unknown user", repoErr: fmt.Errorf("user x: %w", repository.ErrNotFound), sessionID: "sess-1", wantErr: true, wantCode: model.ErrCodeUserNotFound, wantCached: 1},
		{name: "transaction failure keeps cache", repoErr: errors.New("tx failed"), sessionID: "sess-1", wantErr: true, wantCached: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var withdrawn string
			repo := &mockUserRepo{
				withdrawFn: func(ctx context.Context, id string) error {
					withdrawn = id
					return tt.repoErr
				},
			}
			cache := studycache.New(0)
			cache.Put("sess-1", "k", []model.StudyItem{{ID: "a"}})

			err := NewService(repo, cache).Withdraw(context.Background(), "user-1", tt.sessionID)

			if (err != nil) != tt.wantErr {
				t.Fatalf("Withdraw() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantCode != "" {
				var apiErr *model.APIError
				if !errors.As(err, &apiErr) || apiErr.Code != tt.wantCode {
					t.Errorf("error = %v, want code %s", err, tt.wantCode)
				}
			}
			if withdrawn != "user-1" {
				t.Errorf("repository Withdraw called with %q, want user-1", withdrawn)
			}
			if got := cache.Len(); got != tt.wantCached {
				t.Errorf("cache.Len() = %d, want %d", got, tt.wantCached)
			}
		})
	}
}

func TestService_Withdraw_NilCache(t *testing.T) {
	svc := NewService(&mockUserRepo{withdrawFn: func(context.Context, string) error { return nil }}, nil)
	if err := svc.Withdraw(context.Background(), "user-1", "sess-1"); err != nil {
		t.Fatalf("Withdraw() error = %v", err)
	}
}
