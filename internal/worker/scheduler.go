// Package worker はcron式で定期実行するバックグラウンドジョブのスケジューラを提供する。
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hitoshi/waterbar/internal/metrics"
)

// Job は定期実行されるジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler はcron式に従ってジョブを実行する。
// 同じジョブの実行が重なった場合は後続をスキップし、パニックは回復してログに残す。
type Scheduler struct {
	cron    *cron.Cron
	ctx     context.Context
	logger  *slog.Logger
	metrics metrics.Recorder
	jobs    []Job
}

// NewScheduler はSchedulerを生成する。ctxはジョブ実行時のコンテキストとして使う。
func NewScheduler(ctx context.Context, loc *time.Location, recorder metrics.Recorder, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:     ctx,
		logger:  logger,
		metrics: recorder,
	}
}

// Add はジョブをcron式specで登録する。specは標準の5フィールド形式か@every記法。
func (s *Scheduler) Add(spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() { s.RunJob(job) }); err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", spec, job.Name(), err)
	}
	s.jobs = append(s.jobs, job)
	s.logger.Info("job scheduled",
		slog.String("job", job.Name()),
		slog.String("schedule", spec),
	)
	return nil
}

// RunJob はジョブを1回実行し、結果をログとメトリクスに記録する。
func (s *Scheduler) RunJob(job Job) {
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	err := job.Run(s.ctx)
	s.metrics.RecordJobRun(job.Name(), err)

	if err != nil {
		s.logger.Error("job failed",
			slog.String("job", job.Name()),
			slog.String("error", err.Error()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return
	}
	s.logger.Info("job completed",
		slog.String("job", job.Name()),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
}

// RunAll は登録済みの全ジョブを順に1回実行する。起動直後の初回実行に使う。
func (s *Scheduler) RunAll() {
	for _, job := range s.jobs {
		s.RunJob(job)
	}
}

// Start はスケジューラをバックグラウンドで開始する。
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop はスケジューラを停止し、実行中のジョブの完了を待つ。
// ctxの期限を過ぎた場合は待たずに戻る。
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

// cronLogger はcron.Loggerをslogに変換する。
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]any{slog.String("error", err.Error())}, keysAndValues...)...)
}
