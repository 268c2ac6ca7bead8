package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) Withdraw(_ context.Context, _ string) error {
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	syncProfileFn    func(ctx context.Context, userID, email, name string) error
}

func (m *mockIdentityRepo) SyncProfile(ctx context.Context, userID, email, name string) error {
	if m.syncProfileFn != nil {
		return m.syncProfileFn(ctx, userID, email, name)
	}
	return nil
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

type mockSessionRepo struct {
	createFn         func(ctx context.Context, session *model.Session) error
	findByIDFn       func(ctx context.Context, id string) (*model.Session, error)
	deleteByIDFn     func(ctx context.Context, id string) error
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpiredBefore(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func googleUser(sub, email, name string) *mockOAuthProvider {
	return &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			return &OAuthUserInfo{ProviderUserID: sub, Email: email, Name: name, Provider: "google"}, nil
		},
	}
}

func newTestService(provider OAuthProvider, users *mockUserRepo, identities *mockIdentityRepo, sessions *mockSessionRepo, cfg ServiceConfig) *Service {
	svc := NewService(provider, users, identities, sessions, cfg)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// --- テスト ---

func TestGetLoginURL_DelegatesToProvider(t *testing.T) {
	provider := &mockOAuthProvider{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	svc := NewService(provider, nil, nil, nil, ServiceConfig{})

	if got, want := svc.GetLoginURL("st"), "https://accounts.google.com/o/oauth2/auth?state=st"; got != want {
		t.Errorf("GetLoginURL() = %q, want %q", got, want)
	}
}

func TestHandleCallback_FirstLogin_RegistersUser(t *testing.T) {
	tests := []struct {
		name      string
		email     string
		admins    []string
		wantAdmin bool
	}{
		{name: "student", email: "aluno@example.com", admins: []string{"admin@example.com"}},
		{name: "admin email matches case-insensitively", email: "Admin@Example.com", admins: []string{" admin@example.com "}, wantAdmin: true},
		{name: "no admins configured", email: "admin@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser *model.User
			var gotIdentity *model.Identity
			var gotSession *model.Session

			users := &mockUserRepo{
				createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
					gotUser, gotIdentity = user, identity
					return nil
				},
			}
			sessions := &mockSessionRepo{
				createFn: func(ctx context.Context, session *model.Session) error {
					gotSession = session
					return nil
				},
			}
			svc := newTestService(googleUser("google-123", tt.email, "Aluno"), users, &mockIdentityRepo{}, sessions,
				ServiceConfig{SessionMaxAge: 3600, AdminEmails: tt.admins})

			session, err := svc.HandleCallback(context.Background(), "code")
			if err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}

			if gotUser == nil || gotIdentity == nil {
				t.Fatal("expected user and identity to be created together")
			}
			if gotUser.Email != tt.email || gotUser.Name != "Aluno" || gotUser.IsAdmin != tt.wantAdmin {
				t.Errorf("user = %+v, want email %q admin %v", gotUser, tt.email, tt.wantAdmin)
			}
			if !gotUser.CreatedAt.Equal(fixedNow) {
				t.Errorf("CreatedAt = %v, want %v", gotUser.CreatedAt, fixedNow)
			}
			if gotIdentity.UserID != gotUser.ID || gotIdentity.Provider != "google" || gotIdentity.ProviderUserID != "google-123" {
				t.Errorf("identity = %+v", gotIdentity)
			}
			if session != gotSession || session.UserID != gotUser.ID {
				t.Errorf("session = %+v, want persisted session for %q", session, gotUser.ID)
			}
			if len(session.ID) != 64 {
				t.Errorf("session ID length = %d, want 64", len(session.ID))
			}
			if want := fixedNow.Add(time.Hour); !session.ExpiresAt.Equal(want) {
				t.Errorf("ExpiresAt = %v, want %v", session.ExpiresAt, want)
			}
		})
	}
}

func TestHandleCallback_KnownIdentity_ReusesUser(t *testing.T) {
	users := &mockUserRepo{
		createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
			t.Error("CreateWithIdentity must not be called for a known identity")
			return nil
		},
	}
	identities := &mockIdentityRepo{
		findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
			if provider != "google" || providerUserID != "google-789" {
				t.Errorf("lookup = %s/%s", provider, providerUserID)
			}
			return &model.Identity{UserID: "user-456", UserEmail: "aluno@example.com", UserName: "Aluno"}, nil
		},
	}
	svc := newTestService(googleUser("google-789", "aluno@example.com", "Aluno"), users, identities, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 60})

	session, err := svc.HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if session.UserID != "user-456" {
		t.Errorf("session userID = %q, want user-456", session.UserID)
	}
}

func TestHandleCallback_Errors(t *testing.T) {
	dbErr := errors.New("db error")

	tests := []struct {
		name       string
		provider   *mockOAuthProvider
		identities *mockIdentityRepo
		users      *mockUserRepo
		sessions   *mockSessionRepo
		wantErr    error
	}{
		{
			name: "code exchange fails",
			provider: &mockOAuthProvider{exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
				return nil, dbErr
			}},
			wantErr: dbErr,
		},
		{
			name:     "identity lookup fails",
			provider: googleUser("g", "a@example.com", "A"),
			identities: &mockIdentityRepo{findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
				return nil, dbErr
			}},
			wantErr: dbErr,
		},
		{
			name:       "user creation fails",
			provider:   googleUser("g", "a@example.com", "A"),
			identities: &mockIdentityRepo{},
			users: &mockUserRepo{createWithIdentityFn: func(ctx context.Context, user *model.User, identity *model.Identity) error {
				return dbErr
			}},
			wantErr: dbErr,
		},
		{
			name:       "session save fails",
			provider:   googleUser("g", "a@example.com", "A"),
			identities: &mockIdentityRepo{},
			users:      &mockUserRepo{},
			sessions: &mockSessionRepo{createFn: func(ctx context.Context, session *model.Session) error {
				return dbErr
			}},
			wantErr: dbErr,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.provider, tt.users, tt.identities, tt.sessions, ServiceConfig{SessionMaxAge: 60})

			session, err := svc.HandleCallback(context.Background(), "code")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("HandleCallback() error = %v, want %v", err, tt.wantErr)
			}
			if session != nil {
				t.Errorf("session = %+v, want nil", session)
			}
		})
	}
}

func TestLogout(t *testing.T) {
	t.Run("deletes session", func(t *testing.T) {
		var deleted string
		svc := NewService(nil, nil, nil, &mockSessionRepo{
			deleteByIDFn: func(ctx context.Context, id string) error {
				deleted = id
				return nil
			},
		}, ServiceConfig{})

		if err := svc.Logout(context.Background(), "session-x"); err != nil {
			t.Fatalf("Logout() error = %v", err)
		}
		if deleted != "session-x" {
			t.Errorf("deleted = %q, want session-x", deleted)
		}
	})

	t.Run("empty id", func(t *testing.T) {
		svc := NewService(nil, nil, nil, nil, ServiceConfig{})
		if err := svc.Logout(context.Background(), ""); !errors.Is(err, ErrNoSession) {
			t.Errorf("Logout() error = %v, want ErrNoSession", err)
		}
	})
}

func TestGetCurrentUser(t *testing.T) {
	student := &model.User{ID: "user-1", Email: "aluno@example.com"}
	dbErr := errors.New("db error")

	tests := []struct {
		name      string
		sessionID string
		session   *model.Session
		user      *model.User
		userErr   error
		want      *model.User
		wantErr   error
	}{
		{name: "valid session", sessionID: "s1", session: &model.Session{ID: "s1", UserID: "user-1"}, user: student, want: student},
		{name: "empty session id", sessionID: "", wantErr: ErrNoSession},
		{name: "expired or unknown session", sessionID: "s2", wantErr: ErrNoSession},
		{name: "withdrawn user", sessionID: "s3", session: &model.Session{ID: "s3", UserID: "gone"}, wantErr: ErrUserGone},
		{name: "user lookup fails", sessionID: "s4", session: &model.Session{ID: "s4", UserID: "user-1"}, userErr: dbErr, wantErr: dbErr},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions := &mockSessionRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
					return tt.session, nil
				},
			}
			users := &mockUserRepo{
				findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
					return tt.user, tt.userErr
				},
			}
			svc := NewService(nil, users, nil, sessions, ServiceConfig{})

			got, err := svc.GetCurrentUser(context.Background(), tt.sessionID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("GetCurrentUser() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("GetCurrentUser() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestIsAdmin(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			switch id {
			case "admin":
				return &model.User{ID: id, IsAdmin: true}, nil
			case "student":
				return &model.User{ID: id}, nil
			}
			return nil, nil
		},
	}
	svc := NewService(nil, userRepo, nil, nil, ServiceConfig{})

	for id, want := range map[string]bool{"admin": true, "student": false, "missing": false} {
		got, err := svc.IsAdmin(context.Background(), id)
		if err != nil {
			t.Fatalf("IsAdmin(%q) error = %v", id, err)
		}
		if got != want {
			t.Errorf("IsAdmin(%q) = %v, want %v", id, got, want)
		}
	}
}

func TestHandleCallback_ExistingUser_SyncsChangedProfile(t *testing.T) {
	tests := []struct {
		name      string
		stored    model.Identity
		syncErr   error
		wantSync  bool
		wantEmail string
	}{
		{
			name:     "unchanged profile is not written",
			stored:   model.Identity{UserID: "user-1", UserEmail: "aluno@example.com", UserName: "Aluno"},
			wantSync: false,
		},
		{
			name:      "changed email is synced",
			stored:    model.Identity{UserID: "user-1", UserEmail: "antigo@example.com", UserName: "Aluno"},
			wantSync:  true,
			wantEmail: "aluno@example.com",
		},
		{
			name:      "sync failure does not block login",
			stored:    model.Identity{UserID: "user-1", UserEmail: "antigo@example.com", UserName: "Aluno"},
			syncErr:   errors.New("duplicate key"),
			wantSync:  true,
			wantEmail: "aluno@example.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockOAuthProvider{
				exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
					return &OAuthUserInfo{
						ProviderUserID: "google-1",
						Email:          "aluno@example.com",
						Name:           "Aluno",
						Provider:       "google",
					}, nil
				},
			}

			var synced bool
			var gotEmail string
			identityRepo := &mockIdentityRepo{
				findByProviderFn: func(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
					identity := tt.stored
					return &identity, nil
				},
				syncProfileFn: func(ctx context.Context, userID, email, name string) error {
					synced = true
					gotEmail = email
					return tt.syncErr
				},
			}

			svc := newTestService(provider, &mockUserRepo{}, identityRepo, &mockSessionRepo{}, ServiceConfig{SessionMaxAge: 86400})

			session, err := svc.HandleCallback(context.Background(), "code")
			if err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}
			if session == nil || session.UserID != "user-1" {
				t.Fatalf("session = %+v, want user-1", session)
			}
			if synced != tt.wantSync {
				t.Errorf("synced = %v, want %v", synced, tt.wantSync)
			}
			if gotEmail != tt.wantEmail {
				t.Errorf("synced email = %q, want %q", gotEmail, tt.wantEmail)
			}
		})
	}
}
