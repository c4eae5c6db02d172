package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/waterbar/internal/auth"
	"github.com/hitoshi/waterbar/internal/booking"
	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/concierge"
	"github.com/hitoshi/waterbar/internal/config"
	"github.com/hitoshi/waterbar/internal/database"
	"github.com/hitoshi/waterbar/internal/events"
	"github.com/hitoshi/waterbar/internal/handler"
	"github.com/hitoshi/waterbar/internal/logger"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/middleware"
	"github.com/hitoshi/waterbar/internal/notify"
	"github.com/hitoshi/waterbar/internal/policy"
	"github.com/hitoshi/waterbar/internal/repository"
	"github.com/hitoshi/waterbar/internal/security"
	"github.com/hitoshi/waterbar/internal/stream"
	"github.com/hitoshi/waterbar/internal/user"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if !logger.SetLevel(cfg.LogLevel) {
		slog.Warn("unknown LOG_LEVEL, falling back to info", slog.String("log_level", cfg.LogLevel))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("venue_timezone", cfg.VenueTimezone),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCreateStaff:
		return runCreateStaff(cfg)
	case CommandListUsers:
		return runListUsers(cfg, os.Stdout)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(databaseURL string) (*sql.DB, error) {
	return database.Connect(context.Background(), databaseURL, 10*time.Second)
}

// newSessionRepo はセッションリポジトリを生成する。REDIS_URLが設定されていればRedisキャッシュを前段に置く。
// Redisに接続できない場合はPostgreSQLのみで動作する。
func newSessionRepo(ctx context.Context, cfg *config.Config, db *sql.DB) (repository.SessionRepository, func()) {
	pg := repository.NewPostgresSessionRepo(db)
	if cfg.RedisURL == "" {
		return pg, func() {}
	}

	client, err := repository.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		slog.Warn("redis unavailable, session cache disabled", slog.String("error", err.Error()))
		return pg, func() {}
	}
	slog.Info("session cache enabled", slog.Duration("ttl", cfg.SessionCacheTTL))
	return repository.NewRedisSessionCache(pg, client, cfg.SessionCacheTTL, slog.Default()), func() { client.Close() }
}

// registerNotifiers はスタッフ向け通知（Telegram・Webhook）をバスに登録する。
// 設定されていない通知先はスキップする。
func registerNotifiers(cfg *config.Config, bus *events.Bus) error {
	if cfg.TelegramBotToken != "" {
		bot, err := notify.NewTelegramBot(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		notify.NewTelegramNotifier(bot, cfg.TelegramStaffChatID, cfg.Location).Register(bus)
		slog.Info("telegram notifications enabled")
	}

	if cfg.BookingWebhookURL != "" {
		guard := security.NewWebhookGuard(10*time.Second, false)
		if err := guard.ValidateURL(cfg.BookingWebhookURL); err != nil {
			return fmt.Errorf("invalid BOOKING_WEBHOOK_URL: %w", err)
		}
		notify.NewWebhookNotifier(guard.Client(), cfg.BookingWebhookURL).Register(bus)
		slog.Info("booking webhook enabled")
	}
	return nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. カタログ
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	bookingRepo := repository.NewPostgresBookingRepo(db)
	requestRepo := repository.NewPostgresRequestRepo(db)
	sessionRepo, closeCache := newSessionRepo(ctx, cfg, db)
	defer closeCache()

	// 4. 横断的な依存（メトリクス・イベント・メール・認可ポリシー）
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	bus := events.NewBus(slog.Default())
	mailer := mail.New(cfg.ResendAPIKey, cfg.MailFrom, slog.Default())

	authz, err := policy.NewAuthorizer(ctx, cfg.AdminEmails)
	if err != nil {
		return fmt.Errorf("failed to prepare admin policy: %w", err)
	}

	if err := registerNotifiers(cfg, bus); err != nil {
		return err
	}

	hub := stream.NewHub(cfg.CORSAllowedOrigin, collector, slog.Default())
	hub.Register(bus)
	defer hub.Close()

	// 5. ドメインサービスの初期化
	authService := auth.NewService(userRepo, sessionRepo, mailer, auth.ServiceConfig{
		SessionMaxAge:  cfg.SessionMaxAge,
		TokenSecret:    cfg.SessionSecret,
		VerifyTokenTTL: cfg.VerifyTokenTTL,
		BaseURL:        cfg.BaseURL,
	})
	bookingService := booking.NewService(bookingRepo, userRepo, cat, mailer, bus, collector, booking.Config{
		Location:       cfg.Location,
		SlotCapacity:   cfg.SlotCapacity,
		MaxAdvanceDays: cfg.BookingMaxAdvanceDays,
	})
	conciergeService := concierge.NewService(requestRepo, cat, mailer, bus, collector, cfg.TeamEmail)
	userService := user.NewService(userRepo, sessionRepo)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitBooking),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		HealthChecker:     db,
		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		AdminAuthorizer:   authz,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRF: middleware.CSRFConfig{
			CookieSecure:   cfg.CookieSecure,
			CookieDomain:   cfg.CookieDomain,
			AllowedOrigins: cfg.CORSAllowedOrigin,
		},
		HSTS:           cfg.CookieSecure,
		RateLimiter:    rateLimiter,
		Metrics:        collector,
		MetricsHandler: metrics.Handler(registry),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		BookingService:      bookingService,
		AdminBookingService: bookingService,
		AvailabilityService: bookingService,
		Catalog:             cat,
		Location:            cfg.Location,

		RequestService: conciergeService,
		RequestLister:  conciergeService,

		UserService: userService,

		BookingStream: hub,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 送信中の通知を待ってから終了する
	bus.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	latest, err := database.LatestVersion()
	if err != nil {
		return err
	}
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Uint64("target_version", uint64(latest)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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
