package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret        string
	SessionMaxAge        int
	SessionRetentionDays int

	// Rate Limit（req/min/user）
	RateLimitGeneral int
	RateLimitReport  int

	// Hotmart Webhook
	HotmartHottok string

	// Mail
	MailAPIURL  string
	MailAPIKey  string
	MailFrom    string
	AdminEmails []string

	// Notify outbox
	NotifyBatchInterval time.Duration
	NotifyMaxPerCycle   int

	// Image
	ImageFetchTimeout time.Duration
	ImageMaxSize      int64

	// Study
	StudyCacheTTL time.Duration

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string

	// Log
	LogLevel string
}

// LoadDotEnv はカレントディレクトリの .env を読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。数値・期間の不正値は既定値に戻す。
func Load() (*Config, error) {
	cfg := &Config{}

	required := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"GOOGLE_CLIENT_ID", &cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", &cfg.GoogleRedirectURL},
		{"SESSION_SECRET", &cfg.SessionSecret},
		{"BASE_URL", &cfg.BaseURL},
		{"HOTMART_HOTTOK", &cfg.HotmartHottok},
	}
	var missing []string
	for _, r := range required {
		*r.dst = os.Getenv(r.key)
		if *r.dst == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}

	cfg.SessionMaxAge = envOr("SESSION_MAX_AGE", 86400, strconv.Atoi)
	cfg.SessionRetentionDays = envOr("SESSION_RETENTION_DAYS", 7, strconv.Atoi)
	cfg.RateLimitGeneral = envOr("RATE_LIMIT_GENERAL", 120, strconv.Atoi)
	cfg.RateLimitReport = envOr("RATE_LIMIT_REPORT", 10, strconv.Atoi)
	cfg.MailAPIURL = envOr("MAIL_API_URL", "https://api.resend.com/emails", asString)
	cfg.MailAPIKey = os.Getenv("MAIL_API_KEY")
	cfg.MailFrom = envOr("MAIL_FROM", "JusMemoriza <noreply@jusmemoriza.com.br>", asString)
	cfg.AdminEmails = envList("ADMIN_EMAILS")
	cfg.NotifyBatchInterval = envOr("NOTIFY_BATCH_INTERVAL", time.Minute, time.ParseDuration)
	cfg.NotifyMaxPerCycle = envOr("NOTIFY_MAX_PER_CYCLE", 50, strconv.Atoi)
	cfg.ImageFetchTimeout = envOr("IMAGE_FETCH_TIMEOUT", 10*time.Second, time.ParseDuration)
	cfg.ImageMaxSize = envOr("IMAGE_MAX_SIZE", int64(2<<20), parseInt64)
	cfg.StudyCacheTTL = envOr("STUDY_CACHE_TTL", 30*time.Minute, time.ParseDuration)
	cfg.ServerPort = envOr("SERVER_PORT", "8080", asString)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = os.Getenv("COOKIE_DOMAIN")
	cfg.CORSAllowedOrigin = envOr("CORS_ALLOWED_ORIGIN", "http://localhost:3000", asString)
	cfg.LogLevel = envOr("LOG_LEVEL", "info", asString)

	return cfg, nil
}

// envOr は環境変数をparseで変換する。未設定または変換できない場合はdefを返す。
func envOr[T any](key string, def T, parse func(string) (T, error)) T {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := parse(v)
	if err != nil {
		return def
	}
	return parsed
}

func asString(v string) (string, error) { return v, nil }

func parseInt64(v string) (int64, error) { return strconv.ParseInt(v, 10, 64) }

// envList はカンマ区切りの環境変数を空要素を除いたスライスで返す。
func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
