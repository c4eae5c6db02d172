package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/waterbar/internal/database"
	"github.com/hitoshi/waterbar/internal/model"
)

const bookingColumns = `b.id, b.user_id, b.time_slot_id, b.date, b.status, b.experience, b.reminder_sent_at, b.created_at, b.updated_at`

const detailQuery = `SELECT ` + bookingColumns + `, u.name, u.email, s.start_time, s.end_time
	FROM bookings b
	JOIN users u ON u.id = b.user_id
	LEFT JOIN time_slots s ON s.id = b.time_slot_id`

// PostgresBookingRepo はPostgreSQLを使用した予約リポジトリ。
type PostgresBookingRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresBookingRepo はPostgresBookingRepoを生成する。
func NewPostgresBookingRepo(db *sql.DB) *PostgresBookingRepo {
	return &PostgresBookingRepo{db: db, now: time.Now}
}

func scanBooking(row rowScanner, extra ...any) (*model.Booking, error) {
	b := &model.Booking{}
	var slotID sql.NullString
	var reminded sql.NullTime
	dest := append([]any{&b.ID, &b.UserID, &slotID, &b.Date, &b.Status, &b.Experience,
		&reminded, &b.CreatedAt, &b.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	b.TimeSlotID = slotID.String
	if reminded.Valid {
		t := reminded.Time
		b.ReminderSentAt = &t
	}
	return b, nil
}

func scanDetail(row rowScanner) (*model.BookingDetail, error) {
	var user model.BookingUser
	var start, end sql.NullTime
	b, err := scanBooking(row, &user.Name, &user.Email, &start, &end)
	if err != nil {
		return nil, err
	}
	d := &model.BookingDetail{Booking: *b, User: user}
	if start.Valid && end.Valid {
		d.TimeSlot = &model.BookingSlot{StartTime: start.Time, EndTime: end.Time}
	}
	return d, nil
}

// CreateInSlot は枠をupsertして予約を追加する。
func (r *PostgresBookingRepo) CreateInSlot(ctx context.Context, nb NewBooking) (*model.Booking, error) {
	var booking *model.Booking

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		// ON CONFLICT DO UPDATE は既存行をロックするため、
		// 同じ枠への並行予約はここで直列化される。
		var slotID string
		var capacity int
		err := tx.QueryRowContext(ctx,
			`INSERT INTO time_slots (id, start_time, end_time, capacity)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (start_time) DO UPDATE SET start_time = EXCLUDED.start_time
			 RETURNING id, capacity`,
			uuid.NewString(), nb.SlotStart, nb.SlotEnd, nb.Capacity,
		).Scan(&slotID, &capacity)
		if err != nil {
			return fmt.Errorf("failed to upsert time slot: %w", err)
		}

		var live, mine int
		err = tx.QueryRowContext(ctx,
			`SELECT count(*) FILTER (WHERE status <> 'CANCELLED'),
			        count(*) FILTER (WHERE status <> 'CANCELLED' AND user_id = $2)
			 FROM bookings WHERE time_slot_id = $1`,
			slotID, nb.UserID,
		).Scan(&live, &mine)
		if err != nil {
			return fmt.Errorf("failed to count slot bookings: %w", err)
		}
		if mine > 0 {
			return ErrAlreadyBooked
		}
		if live >= capacity {
			return ErrSlotFull
		}

		now := r.now()
		b := &model.Booking{
			ID:         uuid.NewString(),
			UserID:     nb.UserID,
			TimeSlotID: slotID,
			Date:       nb.Date,
			Status:     model.StatusPendingPayment,
			Experience: nb.Experience,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bookings (id, user_id, time_slot_id, date, status, experience, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			b.ID, b.UserID, b.TimeSlotID, b.Date, b.Status, b.Experience, b.CreatedAt, b.UpdatedAt,
		)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyBooked
		}
		if err != nil {
			return fmt.Errorf("failed to insert booking: %w", err)
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	return b, nil
}

// FindDetailByID は予約者と枠を含む予約を取得する。見つからない場合はnilを返す。
func (r *PostgresBookingRepo) FindDetailByID(ctx context.Context, id string) (*model.BookingDetail, error) {
	d, err := scanDetail(r.db.QueryRowContext(ctx, detailQuery+` WHERE b.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find booking detail: %w", err)
	}
	return d, nil
}

// ListByUser はユーザーの予約を日付の新しい順に返す。
func (r *PostgresBookingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+bookingColumns+` FROM bookings b WHERE b.user_id = $1 ORDER BY b.date DESC, b.created_at DESC`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return bookings, nil
}

// CountByUserAndStatus はユーザーの指定ステータスの予約数を返す。
func (r *PostgresBookingRepo) CountByUserAndStatus(ctx context.Context, userID string, status model.BookingStatus) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM bookings WHERE user_id = $1 AND status = $2`,
		userID, status,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return count, nil
}

// UpdateStatus は予約ステータスを更新する。見つからない場合はfalseを返す。
func (r *PostgresBookingRepo) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, r.now(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// Reactivate はキャンセル済みの予約を枠の定員内で有効なステータスに戻す。
func (r *PostgresBookingRepo) Reactivate(ctx context.Context, id string, status model.BookingStatus) (bool, error) {
	updated := false

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var userID string
		var slotID sql.NullString
		err := tx.QueryRowContext(ctx,
			`SELECT user_id, time_slot_id FROM bookings
			 WHERE id = $1 AND status = 'CANCELLED'
			 FOR UPDATE`,
			id,
		).Scan(&userID, &slotID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to lock booking: %w", err)
		}

		if slotID.Valid {
			// 枠行のロックでCreateInSlotと直列化する
			var capacity int
			err = tx.QueryRowContext(ctx,
				`SELECT capacity FROM time_slots WHERE id = $1 FOR UPDATE`, slotID.String,
			).Scan(&capacity)
			if err != nil {
				return fmt.Errorf("failed to lock time slot: %w", err)
			}

			var live, mine int
			err = tx.QueryRowContext(ctx,
				`SELECT count(*) FILTER (WHERE status <> 'CANCELLED'),
				        count(*) FILTER (WHERE status <> 'CANCELLED' AND user_id = $2)
				 FROM bookings WHERE time_slot_id = $1 AND id <> $3`,
				slotID.String, userID, id,
			).Scan(&live, &mine)
			if err != nil {
				return fmt.Errorf("failed to count slot bookings: %w", err)
			}
			if mine > 0 {
				return ErrAlreadyBooked
			}
			if live >= capacity {
				return ErrSlotFull
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`,
			id, status, r.now(),
		)
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return ErrAlreadyBooked
		}
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		updated = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

// ListDetailed は全予約を日付降順・作成日時降順で返す。
func (r *PostgresBookingRepo) ListDetailed(ctx context.Context) ([]*model.BookingDetail, error) {
	return r.queryDetails(ctx, detailQuery+` ORDER BY b.date DESC, b.created_at DESC`)
}

// SlotUsage は開始時刻で枠を探し、定員と有効な予約数を返す。
func (r *PostgresBookingRepo) SlotUsage(ctx context.Context, start time.Time) (int, int, bool, error) {
	var capacity, booked int
	err := r.db.QueryRowContext(ctx,
		`SELECT s.capacity, count(b.id) FILTER (WHERE b.status <> 'CANCELLED')
		 FROM time_slots s
		 LEFT JOIN bookings b ON b.time_slot_id = s.id
		 WHERE s.start_time = $1
		 GROUP BY s.id, s.capacity`,
		start,
	).Scan(&capacity, &booked)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, fmt.Errorf("failed to read slot usage: %w", err)
	}
	return capacity, booked, true, nil
}

// SettleEnded は終了した枠の予約を確定させる。
func (r *PostgresBookingRepo) SettleEnded(ctx context.Context, now time.Time) (int64, int64, error) {
	var completed, cancelled int64

	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE bookings b SET status = 'COMPLETED', updated_at = $1
			 FROM time_slots s
			 WHERE s.id = b.time_slot_id AND s.end_time <= $1 AND b.status IN ('ACTIVE', 'UPCOMING')`,
			now)
		if err != nil {
			return fmt.Errorf("failed to complete bookings: %w", err)
		}
		if completed, err = res.RowsAffected(); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx,
			`UPDATE bookings b SET status = 'CANCELLED', updated_at = $1
			 FROM time_slots s
			 WHERE s.id = b.time_slot_id AND s.end_time <= $1 AND b.status = 'PENDING_PAYMENT'`,
			now)
		if err != nil {
			return fmt.Errorf("failed to cancel unpaid bookings: %w", err)
		}
		cancelled, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, 0, err
	}
	return completed, cancelled, nil
}

// ListDueReminders は枠の開始が[from, to)にあり、未通知でキャンセルされていない予約を返す。
func (r *PostgresBookingRepo) ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.BookingDetail, error) {
	return r.queryDetails(ctx,
		detailQuery+` WHERE s.start_time >= $1 AND s.start_time < $2
		 AND b.reminder_sent_at IS NULL AND b.status <> 'CANCELLED'
		 ORDER BY s.start_time`,
		from, to)
}

// MarkReminded はリマインダー送信日時を記録する。
func (r *PostgresBookingRepo) MarkReminded(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE bookings SET reminder_sent_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark reminder: %w", err)
	}
	return nil
}

func (r *PostgresBookingRepo) queryDetails(ctx context.Context, query string, args ...any) ([]*model.BookingDetail, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var details []*model.BookingDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate bookings: %w", err)
	}
	return details, nil
}

// compile-time interface check
var _ BookingRepository = (*PostgresBookingRepo)(nil)
