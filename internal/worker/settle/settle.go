// Package settle は終了したモーニングパーティーの予約を確定させるジョブを提供する。
package settle

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Settler は終了した枠の予約ステータスを確定させる。repository.BookingRepositoryが満たす。
type Settler interface {
	SettleEnded(ctx context.Context, now time.Time) (completed, cancelled int64, err error)
}

// Job は枠の終了時刻を過ぎた予約を確定させる。
// ACTIVE/UPCOMINGはCOMPLETEDに、支払いのないPENDING_PAYMENTはCANCELLEDにする。
type Job struct {
	repo   Settler
	logger *slog.Logger
	now    func() time.Time
}

// NewJob はJobを生成する。
func NewJob(repo Settler, logger *slog.Logger) *Job {
	return &Job{repo: repo, logger: logger, now: time.Now}
}

// Name はジョブ名を返す。
func (j *Job) Name() string { return "settle_bookings" }

// Run は1回分の確定処理を行う。
func (j *Job) Run(ctx context.Context) error {
	completed, cancelled, err := j.repo.SettleEnded(ctx, j.now())
	if err != nil {
		return fmt.Errorf("failed to settle ended bookings: %w", err)
	}
	if completed > 0 || cancelled > 0 {
		j.logger.Info("ended bookings settled",
			slog.Int64("completed", completed),
			slog.Int64("cancelled", cancelled),
		)
	}
	return nil
}
