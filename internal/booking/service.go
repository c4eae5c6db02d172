// Package booking はモーニングパーティーの予約に関するビジネスロジックを提供する。
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/events"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/repository"
	"github.com/hitoshi/waterbar/internal/schedule"
)

// Config は予約サービスの設定。
type Config struct {
	Location       *time.Location
	SlotCapacity   int
	MaxAdvanceDays int
}

// Service は予約のサービス層。
type Service struct {
	repo    repository.BookingRepository
	users   repository.UserRepository
	catalog *catalog.Catalog
	mailer  mail.Mailer
	events  events.Publisher
	metrics metrics.Recorder
	config  Config
	now     func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	repo repository.BookingRepository,
	users repository.UserRepository,
	cat *catalog.Catalog,
	mailer mail.Mailer,
	publisher events.Publisher,
	recorder metrics.Recorder,
	config Config,
) *Service {
	if config.Location == nil {
		config.Location = time.UTC
	}
	return &Service{
		repo:    repo,
		users:   users,
		catalog: cat,
		mailer:  mailer,
		events:  publisher,
		metrics: recorder,
		config:  config,
		now:     time.Now,
	}
}

// Create は指定日のモーニングパーティーを予約する。
// 枠の開始時刻が過去、または予約可能日数を超える日付は拒否する。
// 枠の定員チェックと予約の追加は1トランザクションで行う。
func (s *Service) Create(ctx context.Context, userID, dateStr string) (*model.Booking, error) {
	if userID == "" {
		return nil, model.NewValidationError("User ID and date are required")
	}
	date, err := schedule.ParseDate(dateStr, s.config.Location)
	if err != nil {
		return nil, err
	}

	start, end := schedule.Window(date, s.config.Location)
	now := s.now()
	if start.Before(now) {
		s.metrics.RecordBookingRejected(metrics.RejectPast)
		return nil, model.NewDateInPastError()
	}
	lastDay := startOfDay(now, s.config.Location).AddDate(0, 0, s.config.MaxAdvanceDays)
	if startOfDay(start, s.config.Location).After(lastDay) {
		s.metrics.RecordBookingRejected(metrics.RejectTooFar)
		return nil, model.NewDateTooFarError(s.config.MaxAdvanceDays)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	experience := ""
	if y, ok := s.catalog.YachtFor(start.Weekday()); ok {
		experience = y.Name
	}

	b, err := s.repo.CreateInSlot(ctx, repository.NewBooking{
		UserID:     userID,
		Date:       start,
		SlotStart:  start,
		SlotEnd:    end,
		Capacity:   s.config.SlotCapacity,
		Experience: experience,
	})
	switch {
	case errors.Is(err, repository.ErrSlotFull):
		s.metrics.RecordBookingRejected(metrics.RejectFull)
		return nil, model.NewSlotFullError()
	case errors.Is(err, repository.ErrAlreadyBooked):
		s.metrics.RecordBookingRejected(metrics.RejectDuplicate)
		return nil, model.NewAlreadyBookedError()
	case err != nil:
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	s.metrics.RecordBookingCreated()
	slog.Info("booking created",
		slog.String("booking_id", b.ID),
		slog.String("user_id", userID),
		slog.String("slot", start.Format(time.RFC3339)),
	)

	s.publish(events.TypeBookingCreated, b, user, "")
	s.sendConfirmation(ctx, b, user, start, end)

	return b, nil
}

// ListForUser はユーザーの予約を日付の新しい順に返す。
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	if userID == "" {
		return nil, model.NewValidationError("User ID is required")
	}
	bookings, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	return bookings, nil
}

// CountPending は支払い待ちの予約数を返す。
func (s *Service) CountPending(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, model.NewValidationError("User ID is required")
	}
	n, err := s.repo.CountByUserAndStatus(ctx, userID, model.StatusPendingPayment)
	if err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}

// Cancel は本人の予約をキャンセルし、枠の定員を空ける。
// 完了済み・キャンセル済みの予約はキャンセルできない。
func (s *Service) Cancel(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	b, err := s.findOwned(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status == model.StatusCompleted || b.Status == model.StatusCancelled {
		return nil, model.NewNotCancellableError(b.Status)
	}

	ok, err := s.repo.UpdateStatus(ctx, b.ID, model.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !ok {
		return nil, model.NewBookingNotFoundError(bookingID)
	}

	previous := b.Status
	b.Status = model.StatusCancelled
	b.UpdatedAt = s.now()
	s.metrics.RecordStatusChange(string(model.StatusCancelled))
	slog.Info("booking cancelled",
		slog.String("booking_id", b.ID),
		slog.String("user_id", userID),
	)

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		slog.Warn("failed to load user for cancel event", slog.String("error", err.Error()))
	}
	s.publish(events.TypeBookingCancelled, b, user, previous)

	return b, nil
}

// Availability は指定日の枠の定員と空き数を返す。枠が未作成の場合は設定上の定員を使う。
func (s *Service) Availability(ctx context.Context, dateStr string) (*model.SlotAvailability, error) {
	date, err := schedule.ParseDate(dateStr, s.config.Location)
	if err != nil {
		return nil, err
	}
	start, end := schedule.Window(date, s.config.Location)

	capacity, booked, found, err := s.repo.SlotUsage(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load slot usage: %w", err)
	}
	if !found {
		capacity, booked = s.config.SlotCapacity, 0
	}

	remaining := capacity - booked
	if remaining < 0 {
		remaining = 0
	}
	return &model.SlotAvailability{
		StartTime: start,
		EndTime:   end,
		Capacity:  capacity,
		Booked:    booked,
		Remaining: remaining,
	}, nil
}

// AdminList は全予約を絞り込み・並べ替えて返す。
func (s *Service) AdminList(ctx context.Context, f Filter) ([]*model.BookingDetail, error) {
	all, err := s.repo.ListDetailed(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return f.Apply(all, s.now(), s.config.Location), nil
}

// UpdateStatus はスタッフが予約ステータスを変更する。
// キャンセル済みの予約を有効なステータスに戻す場合は、枠の定員と重複予約を確認し直す。
func (s *Service) UpdateStatus(ctx context.Context, bookingID, status string) (*model.BookingDetail, error) {
	if bookingID == "" || status == "" {
		return nil, model.NewValidationError("Booking ID and status are required")
	}
	st, err := model.ParseBookingStatus(status)
	if err != nil {
		return nil, err
	}
	if uuid.Validate(bookingID) != nil {
		return nil, model.NewBookingNotFoundError(bookingID)
	}

	current, err := s.repo.FindDetailByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if current == nil {
		return nil, model.NewBookingNotFoundError(bookingID)
	}

	var ok bool
	if current.Status == model.StatusCancelled && st != model.StatusCancelled {
		ok, err = s.repo.Reactivate(ctx, bookingID, st)
	} else {
		ok, err = s.repo.UpdateStatus(ctx, bookingID, st)
	}
	switch {
	case errors.Is(err, repository.ErrSlotFull):
		s.metrics.RecordBookingRejected(metrics.RejectFull)
		return nil, model.NewSlotFullError()
	case errors.Is(err, repository.ErrAlreadyBooked):
		s.metrics.RecordBookingRejected(metrics.RejectDuplicate)
		return nil, model.NewAlreadyBookedError()
	case err != nil:
		return nil, fmt.Errorf("failed to update booking status: %w", err)
	}
	if !ok {
		return nil, model.NewBookingNotFoundError(bookingID)
	}

	previous := current.Status
	current.Status = st
	current.UpdatedAt = s.now()

	if previous != st {
		s.metrics.RecordStatusChange(string(st))
		slog.Info("booking status changed",
			slog.String("booking_id", bookingID),
			slog.String("from", string(previous)),
			slog.String("to", string(st)),
		)
		s.publish(events.TypeBookingStatusChanged, &current.Booking, &model.User{
			Name:  current.User.Name,
			Email: current.User.Email,
		}, previous)
	}

	return current, nil
}

// findOwned は本人の予約を取得する。他人の予約は存在しないものとして扱う。
func (s *Service) findOwned(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	if userID == "" || bookingID == "" {
		return nil, model.NewValidationError("User ID and booking ID are required")
	}
	if uuid.Validate(bookingID) != nil {
		return nil, model.NewBookingNotFoundError(bookingID)
	}
	b, err := s.repo.FindByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to find booking: %w", err)
	}
	if b == nil || b.UserID != userID {
		return nil, model.NewBookingNotFoundError(bookingID)
	}
	return b, nil
}

func (s *Service) publish(eventType string, b *model.Booking, user *model.User, previous model.BookingStatus) {
	p := events.BookingPayload{
		BookingID:      b.ID,
		UserID:         b.UserID,
		Date:           b.Date,
		Status:         string(b.Status),
		PreviousStatus: string(previous),
		Experience:     b.Experience,
	}
	if user != nil {
		p.UserName = user.Name
		p.UserEmail = user.Email
	}
	if err := s.events.PublishJSON(eventType, p); err != nil {
		slog.Error("failed to publish booking event",
			slog.String("event_type", eventType),
			slog.String("error", err.Error()),
		)
	}
}

// sendConfirmation は予約受付メールを送る。失敗はログとメトリクスに残すだけで予約は成立させる。
func (s *Service) sendConfirmation(ctx context.Context, b *model.Booking, user *model.User, start, end time.Time) {
	msg, err := mail.BookingConfirmationEmail(user.Email, MailInfo(b, user.Name, start, end, s.config.Location))
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		s.metrics.RecordMailFailure("booking_confirmation")
		slog.Error("failed to send booking confirmation",
			slog.String("booking_id", b.ID),
			slog.String("error", err.Error()),
		)
	}
}

// MailInfo はメール本文向けに予約情報を整形する。リマインダージョブからも使う。
func MailInfo(b *model.Booking, name string, start, end time.Time, loc *time.Location) mail.BookingInfo {
	return mail.BookingInfo{
		Name:       name,
		BookingID:  b.ID,
		Date:       start.In(loc).Format("Monday, January 2, 2006"),
		Time:       WindowLabel(start, end, loc),
		Experience: b.Experience,
	}
}

// WindowLabel は「6:00 AM - 9:00 AM」形式の時間帯表記を返す。
func WindowLabel(start, end time.Time, loc *time.Location) string {
	return start.In(loc).Format("3:04 PM") + " - " + end.In(loc).Format("3:04 PM")
}
