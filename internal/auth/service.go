// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string // "google", "github" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
// 将来的に複数IdP（Google, GitHub等）に対応するための抽象化。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int      // セッション有効期間（秒）
	AdminEmails   []string // 初回ログイン時に管理者として登録するメールアドレス
}

var (
	// ErrNoSession はセッションIDが空、存在しない、または期限切れの場合に返る。
	ErrNoSession = errors.New("session not found or expired")
	// ErrUserGone はセッションに紐付くユーザーが退会済みの場合に返る。
	ErrUserGone = errors.New("user not found")
)

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	sessionTTL  time.Duration
	admins      map[string]struct{}
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	admins := make(map[string]struct{}, len(config.AdminEmails))
	for _, e := range config.AdminEmails {
		if e = normalizeEmail(e); e != "" {
			admins[e] = struct{}{}
		}
	}
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		sessionTTL:  time.Duration(config.SessionMaxAge) * time.Second,
		admins:      admins,
		now:         time.Now,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを検証してユーザーを特定し、新しいセッションを発行する。
// 初めてのIdPアカウントであればユーザーとidentityを1トランザクションで登録する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	userID, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.issueSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// resolveUser はIdPアカウントに対応するユーザーIDを返す。未登録なら作成する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity == nil {
		return s.registerUser(ctx, info)
	}

	s.syncProfile(ctx, identity, info)
	slog.Info("existing user logged in",
		slog.String("user_id", identity.UserID),
		slog.String("provider", info.Provider),
	)
	return identity.UserID, nil
}

func (s *Service) registerUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	now := s.now()
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     info.Email,
		Name:      info.Name,
		IsAdmin:   s.isAdminEmail(info.Email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}

	slog.Info("new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
		slog.Bool("is_admin", user.IsAdmin),
	)
	return user.ID, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to find session: %w", err)
	case session == nil:
		return nil, ErrNoSession
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	switch {
	case err != nil:
		return nil, fmt.Errorf("failed to find user: %w", err)
	case user == nil:
		return nil, ErrUserGone
	}
	return user, nil
}

// IsAdmin はユーザーが管理者かどうかを返す。ユーザーが存在しない場合はfalse。
func (s *Service) IsAdmin(ctx context.Context, userID string) (bool, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to find user: %w", err)
	}
	return user != nil && user.IsAdmin, nil
}

// syncProfile はIdP側でメールアドレスや表示名が変わっていればユーザーに反映する。
// 購入はメールアドレスで照合するため、古いアドレスのままにしない。
// 失敗してもログインは継続する。
func (s *Service) syncProfile(ctx context.Context, identity *model.Identity, info *OAuthUserInfo) {
	if info.Email == "" || (identity.UserEmail == info.Email && identity.UserName == info.Name) {
		return
	}
	if err := s.identRepo.SyncProfile(ctx, identity.UserID, info.Email, info.Name); err != nil {
		slog.Warn("failed to sync user profile",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		return
	}
	slog.Info("user profile synced from identity provider", slog.String("user_id", identity.UserID))
}

func (s *Service) isAdminEmail(email string) bool {
	_, ok := s.admins[normalizeEmail(email)]
	return ok
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// issueSession は新しいセッションIDを払い出して永続化する。
func (s *Service) issueSession(ctx context.Context, userID string) (*model.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: now.Add(s.sessionTTL),
		CreatedAt: now,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return session, nil
}

// newSessionID は256bitの乱数を16進文字列にしたセッションIDを返す。
func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
