// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れのセッションと、保持期間を超えたウェルネスリクエストを削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

const (
	deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at < now()`
	deleteOldRequests     = `DELETE FROM wellness_requests WHERE created_at < now() - $1::interval`
)

// CleanupJob は期限切れデータの削除ジョブ。冪等で、削除対象がなくてもエラーにならない。
type CleanupJob struct {
	db     Executor
	logger *slog.Logger
	// RequestRetentionDays はウェルネスリクエストの保持日数。0以下の場合は削除しない。
	RequestRetentionDays int
}

// NewCleanupJob は新しいCleanupJobを生成する。リクエストの保持日数の既定値は365日。
func NewCleanupJob(db Executor, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:                   db,
		logger:               logger,
		RequestRetentionDays: 365,
	}
}

// Name はジョブ名を返す。
func (j *CleanupJob) Name() string { return "cleanup" }

// Run は期限切れセッションと古いリクエストを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	sessions, err := j.exec(ctx, deleteExpiredSessions)
	if err != nil {
		j.logger.Error("failed to delete expired sessions", slog.String("error", err.Error()))
		return fmt.Errorf("session cleanup failed: %w", err)
	}

	var requests int64
	if j.RequestRetentionDays > 0 {
		interval := fmt.Sprintf("%d days", j.RequestRetentionDays)
		requests, err = j.exec(ctx, deleteOldRequests, interval)
		if err != nil {
			j.logger.Error("failed to delete old wellness requests",
				slog.String("error", err.Error()),
				slog.Int("retention_days", j.RequestRetentionDays),
			)
			return fmt.Errorf("request cleanup failed: %w", err)
		}
	}

	j.logger.Info("cleanup completed",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_requests", requests),
		slog.Int("retention_days", j.RequestRetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

func (j *CleanupJob) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}
