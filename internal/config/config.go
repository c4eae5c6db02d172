// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
	_ "time/tzdata" // distrolessイメージにはゾーン情報がないため埋め込む

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Session
	SessionSecret   string        `env:"SESSION_SECRET,required"`
	SessionMaxAge   int           `env:"SESSION_MAX_AGE,default=86400"`
	VerifyTokenTTL  time.Duration `env:"VERIFY_TOKEN_TTL,default=24h"`
	RedisURL        string        `env:"REDIS_URL"`
	SessionCacheTTL time.Duration `env:"SESSION_CACHE_TTL,default=5m"`

	// Booking
	VenueTimezone         string `env:"VENUE_TIMEZONE,default=Asia/Dubai"`
	SlotCapacity          int    `env:"SLOT_CAPACITY,default=20"`
	BookingMaxAdvanceDays int    `env:"BOOKING_MAX_ADVANCE_DAYS,default=90"`
	CatalogPath           string `env:"CATALOG_PATH"`

	// Admin
	AdminEmailsRaw string `env:"ADMIN_EMAILS"`

	// Mail
	ResendAPIKey string `env:"RESEND_API_KEY"`
	MailFrom     string `env:"MAIL_FROM,default=The Water Bar <noreply@waterbar.com>"`
	TeamEmail    string `env:"TEAM_EMAIL,default=team@waterbar.com"`

	// Notification
	TelegramBotToken    string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramStaffChatID int64  `env:"TELEGRAM_STAFF_CHAT_ID"`
	BookingWebhookURL   string `env:"BOOKING_WEBHOOK_URL"`

	// Google Sheets
	GoogleSheetsID        string `env:"GOOGLE_SHEETS_ID"`
	GoogleCredentialsFile string `env:"GOOGLE_CREDENTIALS_FILE"`

	// Worker schedules (cron式)
	CleanupSchedule    string `env:"CLEANUP_SCHEDULE,default=@every 1h"`
	CompletionSchedule string `env:"COMPLETION_SCHEDULE,default=@every 15m"`
	ReminderSchedule   string `env:"REMINDER_SCHEDULE,default=0 18 * * *"`
	SheetsSchedule     string `env:"SHEETS_SCHEDULE,default=@every 10m"`

	// Rate Limit (req/min)
	RateLimitGeneral int `env:"RATE_LIMIT_GENERAL,default=120"`
	RateLimitBooking int `env:"RATE_LIMIT_BOOKING,default=10"`

	// Logging
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Server
	ServerPort string `env:"SERVER_PORT,default=8080"`
	// ワーカーの/metricsを公開するポート
	WorkerMetricsPort string `env:"WORKER_METRICS_PORT,default=9091"`
	BaseURL    string `env:"BASE_URL,required"`

	// Cookie
	CookieDomain string `env:"COOKIE_DOMAIN"`
	CookieSecure bool

	// CORS
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN,default=http://localhost:3000"`

	// 派生値
	AdminEmails []string
	Location    *time.Location
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込む（既存の環境変数は上書きしない）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}
	if err := envdecode.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.VenueTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid VENUE_TIMEZONE %q: %w", cfg.VenueTimezone, err)
	}
	cfg.Location = loc
	cfg.AdminEmails = splitList(cfg.AdminEmailsRaw)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return cfg, nil
}

// validate は必須項目と値の範囲を検証する。
func (c *Config) validate() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if c.SlotCapacity <= 0 {
		return fmt.Errorf("SLOT_CAPACITY must be positive, got %d", c.SlotCapacity)
	}
	if c.BookingMaxAdvanceDays <= 0 {
		return fmt.Errorf("BOOKING_MAX_ADVANCE_DAYS must be positive, got %d", c.BookingMaxAdvanceDays)
	}
	if c.TelegramBotToken != "" && c.TelegramStaffChatID == 0 {
		return fmt.Errorf("TELEGRAM_STAFF_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	if c.GoogleSheetsID != "" && c.GoogleCredentialsFile == "" {
		return fmt.Errorf("GOOGLE_CREDENTIALS_FILE is required when GOOGLE_SHEETS_ID is set")
	}
	return nil
}

// SheetsEnabled はGoogle Sheets同期が設定されているかを返す。
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSheetsID != "" && c.GoogleCredentialsFile != ""
}

// splitList はカンマ区切りの値を小文字化して分割する。空要素は除く。
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		v := strings.ToLower(strings.TrimSpace(part))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
