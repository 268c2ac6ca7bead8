// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
)

// DeckCache はセッション単位の学習デッキキャッシュの破棄インターフェース。
type DeckCache interface {
	Drop(sessionID string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	cache    DeckCache
}

// NewService はServiceの新しいインスタンスを生成する。cacheはnilでもよい。
func NewService(userRepo repository.UserRepository, cache DeckCache) *Service {
	return &Service{
		userRepo: userRepo,
		cache:    cache,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 回答・マーク・報告・セッション・ユーザーを1トランザクションで削除し、
// 呼び出し元セッションのデッキキャッシュを破棄する。
// 購入レコードはメールアドレス単位の会計記録として残す。
func (s *Service) Withdraw(ctx context.Context, userID, sessionID string) error {
	err := s.userRepo.Withdraw(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.NewUserNotFoundError()
	case err != nil:
		return fmt.Errorf("退会処理に失敗しました: %w", err)
	}

	if s.cache != nil && sessionID != "" {
		s.cache.Drop(sessionID)
	}
	slog.Info("退会処理が完了しました", slog.String("user_id", userID))
	return nil
}
