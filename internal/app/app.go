package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jusmemoriza/internal/auth"
	"github.com/hitoshi/jusmemoriza/internal/cards"
	"github.com/hitoshi/jusmemoriza/internal/catalog"
	"github.com/hitoshi/jusmemoriza/internal/config"
	"github.com/hitoshi/jusmemoriza/internal/database"
	"github.com/hitoshi/jusmemoriza/internal/handler"
	"github.com/hitoshi/jusmemoriza/internal/importer"
	"github.com/hitoshi/jusmemoriza/internal/logger"
	"github.com/hitoshi/jusmemoriza/internal/media"
	"github.com/hitoshi/jusmemoriza/internal/metrics"
	"github.com/hitoshi/jusmemoriza/internal/middleware"
	"github.com/hitoshi/jusmemoriza/internal/model"
	"github.com/hitoshi/jusmemoriza/internal/notify"
	"github.com/hitoshi/jusmemoriza/internal/purchase"
	"github.com/hitoshi/jusmemoriza/internal/report"
	"github.com/hitoshi/jusmemoriza/internal/repository"
	"github.com/hitoshi/jusmemoriza/internal/security"
	"github.com/hitoshi/jusmemoriza/internal/study"
	"github.com/hitoshi/jusmemoriza/internal/studycache"
	"github.com/hitoshi/jusmemoriza/internal/user"
	"github.com/hitoshi/jusmemoriza/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .env と環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .env を読み込む（既存の環境変数は上書きしない）
	if err := config.LoadDotEnv(""); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if level := logger.ParseLevel(cfg.LogLevel); level != slog.LevelInfo {
		logger.SetupDefault(w, level)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// runWithConfig は設定を読み込んだうえでfnを実行する。
func runWithConfig(w io.Writer, cmd Command, fn func(cfg *config.Config) error) error {
	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	return fn(cfg)
}

// openDB はDB接続を開き疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// signalContext はSIGINTまたはSIGTERMでキャンセルされるコンテキストを返す。
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

// newNotifier はメールAPIクライアントと管理者宛て通知を構築する。
func newNotifier(cfg *config.Config, m metrics.MetricsCollector) *notify.Notifier {
	mailer := notify.NewClient(
		&http.Client{Timeout: 10 * time.Second},
		cfg.MailAPIURL, cfg.MailAPIKey,
		slog.Default(),
	)
	return notify.NewNotifier(mailer, cfg.MailFrom, cfg.AdminEmails, m)
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	ctx, stop := signalContext()
	defer stop()

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	taxonomyRepo := repository.NewPostgresTaxonomyRepo(db)
	comboRepo := repository.NewPostgresComboRepo(db)
	cardRepo := repository.NewPostgresCardRepo(db)
	studyRepo := repository.NewPostgresStudyRepo(db)
	markRepo := repository.NewPostgresMarkRepo(db)
	purchaseRepo := repository.NewPostgresPurchaseRepo(db)
	reportRepo := repository.NewPostgresReportRepo(db)
	importRepo := repository.NewPostgresImportRepo(db)

	// 3. 横断的サービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	deckCache := studycache.New(cfg.StudyCacheTTL)
	go deckCache.Start(ctx, time.Minute, slog.Default())

	// 4. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, sessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge, AdminEmails: cfg.AdminEmails},
	)

	studyService := study.NewService(studyRepo, markRepo, comboRepo, deckCache, collector)
	catalogService := catalog.NewService(taxonomyRepo, comboRepo, sanitizer)
	cardService := cards.NewService(cardRepo, taxonomyRepo, sanitizer)
	imageService := media.NewService(comboRepo, ssrfGuard, cfg.ImageFetchTimeout, cfg.ImageMaxSize, slog.Default())
	importService := importer.NewImporter(importRepo, sanitizer, collector, slog.Default())
	purchaseService := purchase.NewService(purchaseRepo, cfg.HotmartHottok, collector, slog.Default())
	reportService := report.NewService(
		reportRepo, userRepo, studyRepo,
		newNotifier(cfg, collector), sanitizer, slog.Default(),
	)
	userService := user.NewService(userRepo, deckCache)

	// 5. ルーターの構築（レート制限は req/min 単位の設定から変換する）
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitReport),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		AdminChecker:      authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Metrics:        collector,
		MetricsHandler: metrics.Handler(prometheus.DefaultGatherer),
		Logger:         slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		StudyService:   studyService,
		CatalogService: catalogService,
		ImageService:   imageService,

		AdminCatalogService: catalogService,
		CardService:         cardService,
		ImportService:       importService,

		PurchaseService: purchaseService,
		ReportService:   reportService,
		UserService:     userService,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 未通知の誤り報告を再送する通知アウトボックスと、
// 期限切れセッションを日次で削除するクリーンアップジョブを実行する。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. 依存関係の初期化
	reportRepo := repository.NewPostgresReportRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	outbox := notify.NewOutbox(
		reportRepo, newNotifier(cfg, collector), collector,
		slog.Default(), cfg.NotifyMaxPerCycle,
	)
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default(), cfg.SessionRetentionDays)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signalContext()
	defer stop()

	slog.Info("worker starting",
		slog.Duration("notify_interval", cfg.NotifyBatchInterval),
		slog.Int("notify_max_per_cycle", cfg.NotifyMaxPerCycle),
		slog.Int("session_retention_days", cfg.SessionRetentionDays),
	)

	// クリーンアップジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 通知アウトボックスをメインgoroutineで実行（ブロッキング）
	outbox.Start(ctx, cfg.NotifyBatchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	st, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(st.Version)),
	)
	return nil
}

// runImport はCSVファイルを1トランザクションでインポートする。
// 行エラーがある場合は行番号付きでoutに書き出し、何も保存しない。
func runImport(cfg *config.Config, kind model.Kind, path string, out io.Writer) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	im := importer.NewImporter(
		repository.NewPostgresImportRepo(db),
		security.NewContentSanitizer(),
		metrics.Nop{},
		slog.Default(),
	)

	ctx, stop := signalContext()
	defer stop()

	result, err := im.Import(ctx, kind, f)
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			for _, fe := range apiErr.Fields {
				fmt.Fprintf(out, "%s: %s\n", fe.Field, fe.Message)
			}
		}
		return fmt.Errorf("import failed: %w", err)
	}

	fmt.Fprintf(out, "imported %d %s rows from %s\n", result.Rows, result.Kind, path)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
