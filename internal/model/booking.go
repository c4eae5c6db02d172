package model

import "time"

// BookingStatus は予約の状態。
type BookingStatus string

const (
	StatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	StatusActive         BookingStatus = "ACTIVE"
	StatusUpcoming       BookingStatus = "UPCOMING"
	StatusCompleted      BookingStatus = "COMPLETED"
	StatusCancelled      BookingStatus = "CANCELLED"
)

// AllStatuses は定義済みの予約ステータスを並び順どおりに返す。
func AllStatuses() []BookingStatus {
	return []BookingStatus{
		StatusPendingPayment,
		StatusActive,
		StatusUpcoming,
		StatusCompleted,
		StatusCancelled,
	}
}

// ParseBookingStatus は文字列を予約ステータスに変換する。
func ParseBookingStatus(s string) (BookingStatus, error) {
	for _, st := range AllStatuses() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", NewInvalidStatusError(s)
}

// SortOrder は管理画面のステータス順ソートで使う順位を返す。
func (s BookingStatus) SortOrder() int {
	for i, st := range AllStatuses() {
		if st == s {
			return i
		}
	}
	return len(AllStatuses())
}

// TimeSlot は定員付きの時間枠を表す。StartTimeは一意。
type TimeSlot struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Booking はモーニングパーティーの予約を表す。
// TimeSlotIDは枠に紐付かない旧データのため空を許容する。
type Booking struct {
	ID             string        `json:"id"`
	UserID         string        `json:"userId"`
	TimeSlotID     string        `json:"timeSlotId,omitempty"`
	Date           time.Time     `json:"date"`
	Status         BookingStatus `json:"status"`
	Experience     string        `json:"experience,omitempty"`
	ReminderSentAt *time.Time    `json:"-"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

// BookingUser は管理画面向けの予約者情報。
type BookingUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// BookingSlot は管理画面向けの時間枠情報。
type BookingSlot struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// BookingDetail は予約者と時間枠を含む予約。
type BookingDetail struct {
	Booking
	User     BookingUser  `json:"user"`
	TimeSlot *BookingSlot `json:"timeSlot"`
}

// SlotAvailability は指定日の枠の空き状況。
type SlotAvailability struct {
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Capacity  int       `json:"capacity"`
	Booked    int       `json:"booked"`
	Remaining int       `json:"remaining"`
}
