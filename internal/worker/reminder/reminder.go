// Package reminder は翌日のモーニングパーティー予約者へリマインダーメールを送るジョブを提供する。
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/waterbar/internal/booking"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/schedule"
)

// Repository はリマインダー対象の取得と送信済みの記録に必要なインターフェース。
type Repository interface {
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.BookingDetail, error)
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// Job は翌日（会場の暦日）に枠がある未通知の予約へリマインダーを送る。
// 送信済みの予約は記録され、再実行しても二重送信しない。
type Job struct {
	repo           Repository
	mailer         mail.Mailer
	metrics        metrics.Recorder
	logger         *slog.Logger
	loc            *time.Location
	maxConcurrency int
	now            func() time.Time
}

// NewJob はJobを生成する。maxConcurrencyが0以下の場合はデフォルト値5を使用する。
func NewJob(
	repo Repository,
	mailer mail.Mailer,
	recorder metrics.Recorder,
	logger *slog.Logger,
	loc *time.Location,
	maxConcurrency int,
) *Job {
	if loc == nil {
		loc = time.UTC
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 5
	}
	return &Job{
		repo:           repo,
		mailer:         mailer,
		metrics:        recorder,
		logger:         logger,
		loc:            loc,
		maxConcurrency: maxConcurrency,
		now:            time.Now,
	}
}

// Name はジョブ名を返す。
func (j *Job) Name() string { return "booking_reminders" }

// Window は通知対象となる枠開始時刻の範囲[from, to)を返す。
func (j *Job) Window() (time.Time, time.Time) {
	n := j.now().In(j.loc)
	from := time.Date(n.Year(), n.Month(), n.Day()+1, 0, 0, 0, 0, j.loc)
	return from, from.AddDate(0, 0, 1)
}

// Run は対象予約へ並列にリマインダーを送る。1件でも失敗した場合はエラーを返す。
func (j *Job) Run(ctx context.Context) error {
	from, to := j.Window()
	due, err := j.repo.ListDueReminders(ctx, from, to)
	if err != nil {
		return fmt.Errorf("failed to list due reminders: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, j.maxConcurrency)
	var wg sync.WaitGroup
	var failed atomic.Int64

	for _, b := range due {
		wg.Add(1)
		sem <- struct{}{}

		go func(b *model.BookingDetail) {
			defer wg.Done()
			defer func() { <-sem }()

			if err := j.remind(ctx, b); err != nil {
				failed.Add(1)
				j.logger.Error("failed to send booking reminder",
					slog.String("booking_id", b.ID),
					slog.String("error", err.Error()),
				)
			}
		}(b)
	}
	wg.Wait()

	j.logger.Info("booking reminders sent",
		slog.Int("due", len(due)),
		slog.Int64("failed", failed.Load()),
		slog.String("date", from.Format("2006-01-02")),
	)

	if n := failed.Load(); n > 0 {
		return fmt.Errorf("%d of %d reminders failed", n, len(due))
	}
	return nil
}

func (j *Job) remind(ctx context.Context, b *model.BookingDetail) error {
	start, end := schedule.Window(b.Date, j.loc)
	if b.TimeSlot != nil {
		start, end = b.TimeSlot.StartTime, b.TimeSlot.EndTime
	}

	msg, err := mail.BookingReminderEmail(b.User.Email, booking.MailInfo(&b.Booking, b.User.Name, start, end, j.loc))
	if err != nil {
		return err
	}
	if err := j.mailer.Send(ctx, msg); err != nil {
		j.metrics.RecordMailFailure("booking_reminder")
		return err
	}
	if err := j.repo.MarkReminded(ctx, b.ID, j.now()); err != nil {
		return fmt.Errorf("failed to mark reminded: %w", err)
	}
	return nil
}
