package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/middleware"
	"github.com/hitoshi/jusmemoriza/internal/model"
)

// HealthChecker はヘルスチェックでDB疎通を確認するためのインターフェース。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	AdminChecker      middleware.AdminChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRF              middleware.CSRFConfig
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler
	Logger            *slog.Logger

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 学習
	StudyService   StudyServiceInterface
	CatalogService CatalogServiceInterface
	ImageService   ImageServiceInterface

	// 管理
	AdminCatalogService AdminCatalogServiceInterface
	CardService         CardServiceInterface
	ImportService       ImportServiceInterface

	// 購入・報告・ユーザー
	PurchaseService PurchaseServiceInterface
	ReportService   ReportServiceInterface
	UserService     UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Logging → CORS
//	  → (認証ルート) Session → CSRF → RateLimit(General) [→ RequireAdmin]
//
// 認証ルート（/auth/*）、Webhook、ヘルスチェック、メトリクス、カバー画像は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.CSRF.CookieSecure))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	studyHandler := NewStudyHandler(deps.StudyService)
	catalogHandler := NewCatalogHandler(deps.CatalogService, deps.ImageService)
	adminHandler := NewAdminHandler(deps.AdminCatalogService, deps.CardService, deps.ImportService, deps.ImageService)
	purchaseHandler := NewPurchaseHandler(deps.PurchaseService, deps.AuthService)
	reportHandler := NewReportHandler(deps.ReportService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// Hotmart Webhook（hottokで検証）
	r.Post("/resources/purchase-hotmart", purchaseHandler.Webhook)

	// CSRFトークンの払い出し
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)

	// コンボのカバー画像（imgタグから参照されるため認証不要）
	r.Get("/api/combos/{comboID}/image", catalogHandler.Image)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → CSRF → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// コンボ閲覧
		r.Get("/api/combos", catalogHandler.ListCombos)
		r.Get("/api/combos/{comboID}", catalogHandler.GetCombo)
		r.Get("/api/combos/{comboID}/filters", catalogHandler.Filters)

		// 誤り報告（報告専用レート制限を追加）
		r.With(deps.RateLimiter.ReportMiddleware()).Post("/api/reports", reportHandler.Create)

		// ユーザー
		r.Get("/api/me/purchases", purchaseHandler.ListMine)
		r.Delete("/api/users/me", userHandler.Withdraw)

		// 管理
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(middleware.NewRequireAdminMiddleware(deps.AdminChecker))
			mountAdminRoutes(r, adminHandler)
		})

		// 学習デッキ・進捗・回答
		r.Get("/api/{kind}/progress", studyHandler.Progress)
		r.Get("/api/{kind}/{comboID}/progress", studyHandler.Progress)
		r.Get("/api/{kind}/{comboID}/type/{type}", studyHandler.Deck)
		r.Post("/api/{kind}/{comboID}/type/{type}", studyHandler.Intent)
	})

	return r
}

// mountAdminRoutes は管理APIのルートを登録する。
func mountAdminRoutes(r chi.Router, h *AdminHandler) {
	for path, level := range levelPaths {
		r.Route("/"+path, func(r chi.Router) {
			r.Post("/", h.CreateNode(level))
			r.Get("/{id}", h.GetNode(level))
			r.Put("/{id}", h.UpdateNode(level))
			r.Put("/{id}/status", h.SetNodeStatus(level))
		})
	}

	r.Route("/combos", func(r chi.Router) {
		r.Post("/", h.CreateCombo)
		r.Get("/{id}", h.GetCombo)
		r.Put("/{id}", h.UpdateCombo)
		r.Put("/{id}/status", h.SetComboStatus)
		r.Put("/{id}/leis", h.ReplaceComboLeis)
		r.Put("/{id}/image", h.SetComboImage)
	})

	r.Route("/flashcards", func(r chi.Router) {
		r.Post("/", h.CreateFlashcard)
		r.Get("/{id}", h.GetFlashcard)
		r.Put("/{id}", h.UpdateFlashcard)
		r.Put("/{id}/status", h.SetCardStatus(model.KindFlashcards))
	})

	r.Route("/quizzes", func(r chi.Router) {
		r.Post("/", h.CreateQuiz)
		r.Get("/{id}", h.GetQuiz)
		r.Put("/{id}", h.UpdateQuiz)
		r.Put("/{id}/status", h.SetCardStatus(model.KindQuizzes))
	})

	r.Post("/import/{kind}", h.Import)
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
