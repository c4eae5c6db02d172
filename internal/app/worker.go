package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/waterbar/internal/config"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/repository"
	"github.com/hitoshi/waterbar/internal/worker"
	"github.com/hitoshi/waterbar/internal/worker/cleanup"
	"github.com/hitoshi/waterbar/internal/worker/reminder"
	"github.com/hitoshi/waterbar/internal/worker/settle"
	"github.com/hitoshi/waterbar/internal/worker/sheets"
)

// scheduledJob はcron式とジョブの組。
type scheduledJob struct {
	spec string
	job  worker.Job
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、定期ジョブのスケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 依存の初期化
	bookingRepo := repository.NewPostgresBookingRepo(db)
	mailer := mail.New(cfg.ResendAPIKey, cfg.MailFrom, slog.Default())
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	jobs := []scheduledJob{
		{cfg.CleanupSchedule, cleanup.NewCleanupJob(db, slog.Default())},
		{cfg.CompletionSchedule, settle.NewJob(bookingRepo, slog.Default())},
		{cfg.ReminderSchedule, reminder.NewJob(bookingRepo, mailer, collector, slog.Default(), cfg.Location, 0)},
	}

	if cfg.SheetsEnabled() {
		svc, err := sheets.NewService(ctx, cfg.GoogleCredentialsFile)
		if err != nil {
			return fmt.Errorf("failed to init sheets sync: %w", err)
		}
		jobs = append(jobs, scheduledJob{
			cfg.SheetsSchedule,
			sheets.NewJob(svc, cfg.GoogleSheetsID, sheets.DefaultSheet, bookingRepo, cfg.Location, slog.Default()),
		})
	}

	// 3. スケジューラの登録
	scheduler := worker.NewScheduler(ctx, cfg.Location, collector, slog.Default())
	for _, sj := range jobs {
		if err := scheduler.Add(sj.spec, sj.job); err != nil {
			return err
		}
	}

	// 4. ジョブ実行数などを公開するメトリクスサーバー
	metricsServer := newWorkerMetricsServer(cfg.WorkerMetricsPort, registry)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("worker metrics server starting",
			slog.String("addr", metricsServer.Addr),
		)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	slog.Info("worker starting",
		slog.Int("jobs", len(jobs)),
		slog.Bool("sheets_sync", cfg.SheetsEnabled()),
	)

	// 起動直後に1回実行してからスケジュールに乗せる
	scheduler.RunAll()
	scheduler.Start()

	var runErr error
	select {
	case <-stop:
	case err := <-serveErr:
		runErr = fmt.Errorf("worker metrics listen error: %w", err)
	}
	slog.Info("shutting down worker...")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	scheduler.Stop(stopCtx)
	if err := metricsServer.Shutdown(stopCtx); err != nil {
		slog.Warn("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if runErr != nil {
		return runErr
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newWorkerMetricsServer はワーカーのレジストリを/metricsで公開するサーバーを生成する。
func newWorkerMetricsServer(port string, gatherer prometheus.Gatherer) *http.Server {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/metrics", metrics.Handler(gatherer))

	return &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
