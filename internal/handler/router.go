package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	AdminAuthorizer   middleware.AdminAuthorizer
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.Recorder
	MetricsHandler    http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 予約
	BookingService      BookingServiceInterface
	AdminBookingService AdminBookingServiceInterface
	AvailabilityService AvailabilityServiceInterface
	Catalog             *catalog.Catalog
	Location            *time.Location

	// リクエスト
	RequestService RequestServiceInterface
	RequestLister  RequestListerInterface

	// ユーザー
	UserService UserServiceInterface

	// 管理画面のリアルタイム配信（websocket）
	BookingStream http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → CSRF → RateLimit(General)
//
// 認証が必要なルートはさらにSessionMiddlewareを通り、管理画面はAdminGuardを通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.AdminAuthorizer, deps.AuthConfig)
	bookingHandler := NewBookingHandler(deps.BookingService)
	adminHandler := NewAdminHandler(deps.AdminBookingService, deps.RequestLister)
	requestHandler := NewRequestHandler(deps.RequestService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)
	catalogHandler := NewCatalogHandler(deps.Catalog, deps.AvailabilityService, deps.Location)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))

	r.Get("/api/catalog", catalogHandler.Catalog)
	r.Get("/api/experiences", catalogHandler.Experiences)
	r.Get("/api/slots", catalogHandler.Slots)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/verify", authHandler.Verify)
		r.Post("/resend", authHandler.Resend)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})
	// 旧クライアント向けの登録エンドポイント
	r.Post("/api/user", authHandler.Register)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder))

		r.Route("/api/bookings", func(r chi.Router) {
			r.Get("/", bookingHandler.List)
			// 予約作成は専用のレート制限を追加
			r.With(deps.RateLimiter.BookingMiddleware()).Post("/", bookingHandler.Create)
			r.Get("/count", bookingHandler.Count)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", bookingHandler.Cancel)
				r.Get("/qr", bookingHandler.QRCode)
			})
		})

		r.Post("/api/requests", requestHandler.Submit)
		r.Delete("/api/users/me", userHandler.Withdraw)

		// --- スタッフ専用ルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAdminGuard(deps.AdminAuthorizer))

			r.Get("/api/user", userHandler.List)

			r.Route("/api/admin", func(r chi.Router) {
				r.Get("/users", userHandler.List)
				r.Get("/requests", adminHandler.ListRequests)

				r.Route("/bookings", func(r chi.Router) {
					r.Get("/", adminHandler.ListBookings)
					r.Patch("/", adminHandler.UpdateBookingStatus)
					r.Get("/export", adminHandler.ExportBookings)
					if deps.BookingStream != nil {
						r.Handle("/stream", deps.BookingStream)
					}
					r.Patch("/{id}", adminHandler.UpdateBookingStatus)
				})
			})
		})
	})

	return r
}
