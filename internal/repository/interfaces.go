// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/waterbar/internal/model"
)

// 永続化層が返す業務上のエラー。サービス層でAPIErrorに変換する。
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrSlotFull       = errors.New("time slot is at capacity")
	ErrAlreadyBooked  = errors.New("user already holds a booking for this slot")
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)
	// FindByEmail は正規化済みメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// Create はユーザーを作成する。メールアドレス重複時はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error
	// SetVerifyToken はメール確認トークンを更新する。
	SetVerifyToken(ctx context.Context, id, token string) error
	// MarkVerified はメール確認済みにし、確認トークンを消去する。
	MarkVerified(ctx context.Context, id string) error
	// PromoteToStaff はパスワードと名前を更新し、確認済みのSTAFFにする。
	PromoteToStaff(ctx context.Context, id, name, passwordHash string) error
	// List は全ユーザーを作成日時の新しい順に返す。
	List(ctx context.Context) ([]*model.User, error)
	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、bookingsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// NewBooking は枠への予約作成に必要な値。
type NewBooking struct {
	UserID     string
	Date       time.Time
	SlotStart  time.Time
	SlotEnd    time.Time
	Capacity   int
	Experience string
}

// BookingRepository は予約と時間枠の永続化インターフェース。
type BookingRepository interface {
	// CreateInSlot は枠をupsertして予約を追加する。1トランザクションで実行し、
	// 定員に達していればErrSlotFull、同じ枠を予約済みならErrAlreadyBookedを返す。
	CreateInSlot(ctx context.Context, nb NewBooking) (*model.Booking, error)
	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Booking, error)
	// FindDetailByID は予約者と枠を含む予約を取得する。見つからない場合はnilを返す。
	FindDetailByID(ctx context.Context, id string) (*model.BookingDetail, error)
	// ListByUser はユーザーの予約を日付の新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Booking, error)
	// CountByUserAndStatus はユーザーの指定ステータスの予約数を返す。
	CountByUserAndStatus(ctx context.Context, userID string, status model.BookingStatus) (int, error)
	// UpdateStatus は予約ステータスを更新する。見つからない場合はfalseを返す。
	UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (bool, error)
	// Reactivate はキャンセル済みの予約を有効なステータスに戻す。
	// 枠をロックして定員を数え直し、満員ならErrSlotFull、同じユーザーが
	// 同じ枠に別の有効な予約を持っていればErrAlreadyBookedを返す。
	// 見つからない、またはキャンセル済みでなくなっていた場合はfalseを返す。
	Reactivate(ctx context.Context, id string, status model.BookingStatus) (bool, error)
	// ListDetailed は全予約を日付降順・作成日時降順で返す。
	ListDetailed(ctx context.Context) ([]*model.BookingDetail, error)
	// SlotUsage は開始時刻で枠を探し、定員と有効な予約数を返す。枠がなければfound=false。
	SlotUsage(ctx context.Context, start time.Time) (capacity, booked int, found bool, err error)
	// SettleEnded は終了した枠の予約を確定させる。
	// ACTIVE/UPCOMINGはCOMPLETEDに、PENDING_PAYMENTはCANCELLEDにする。
	SettleEnded(ctx context.Context, now time.Time) (completed, cancelled int64, err error)
	// ListDueReminders は枠の開始が[from, to)にあり、未通知でキャンセルされていない予約を返す。
	ListDueReminders(ctx context.Context, from, to time.Time) ([]*model.BookingDetail, error)
	// MarkReminded はリマインダー送信日時を記録する。
	MarkReminded(ctx context.Context, id string, at time.Time) error
}

// RequestRepository はウェルネスリクエストの永続化インターフェース。
type RequestRepository interface {
	// Create はリクエストを保存する。
	Create(ctx context.Context, req *model.WellnessRequest) error
	// List はリクエストを新しい順に最大limit件返す。
	List(ctx context.Context, limit int) ([]*model.WellnessRequest, error)
}
