// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, booking, request, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidDate        = "INVALID_DATE"
	ErrCodeDateInPast         = "DATE_IN_PAST"
	ErrCodeDateTooFar         = "DATE_TOO_FAR"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidFilter      = "INVALID_FILTER"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeBookingNotFound    = "BOOKING_NOT_FOUND"
	ErrCodeSlotFull           = "SLOT_FULL"
	ErrCodeAlreadyBooked      = "ALREADY_BOOKED"
	ErrCodeNotCancellable     = "BOOKING_NOT_CANCELLABLE"
	ErrCodeUnknownWellness    = "UNKNOWN_WELLNESS_TYPE"
	ErrCodeUnknownDrink       = "UNKNOWN_DRINK"
	ErrCodeDeliveryFailed     = "DELIVERY_FAILED"
	ErrCodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeCSRF               = "CSRF_TOKEN_INVALID"
)

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the submitted fields and try again.",
	}
}

// NewInvalidDateError は日付の形式が不正な場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("Invalid date format: %s", value),
		Category: "validation",
		Action:   "Use YYYY-MM-DD or an RFC 3339 timestamp.",
	}
}

// NewDateInPastError は過去日付での予約エラーを生成する。
func NewDateInPastError() *APIError {
	return &APIError{
		Code:     ErrCodeDateInPast,
		Message:  "Booking date must be in the future",
		Category: "booking",
		Action:   "Pick a Morning Party that has not started yet.",
	}
}

// NewDateTooFarError は予約可能期間を超えた日付のエラーを生成する。
func NewDateTooFarError(maxDays int) *APIError {
	return &APIError{
		Code:     ErrCodeDateTooFar,
		Message:  fmt.Sprintf("Bookings open %d days in advance", maxDays),
		Category: "booking",
		Action:   "Pick an earlier date.",
	}
}

// NewInvalidStatusError は未定義の予約ステータスのエラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("Invalid booking status: %s", status),
		Category: "validation",
		Action:   "Use one of PENDING_PAYMENT, ACTIVE, UPCOMING, COMPLETED, CANCELLED.",
	}
}

// NewInvalidFilterError は無効なフィルタエラーを生成する。
func NewInvalidFilterError(name, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidFilter,
		Message:  fmt.Sprintf("Invalid %s filter: %s", name, value),
		Category: "validation",
		Action:   "Check the filter query parameters.",
	}
}

// NewUserExistsError はメールアドレス重複エラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "User already exists",
		Category: "auth",
		Action:   "Log in instead, or use another email address.",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewEmailNotVerifiedError はメール未確認ユーザーのログインエラーを生成する。
func NewEmailNotVerifiedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotVerified,
		Message:  "Please verify your email before logging in",
		Category: "auth",
		Action:   "Open the link in the verification email, or request a new one.",
	}
}

// NewInvalidTokenError は確認トークンが無効な場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidToken,
		Message:  "Invalid or expired verification token",
		Category: "auth",
		Action:   "Request a new verification email.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Unauthorized",
		Category: "auth",
		Action:   "Log in and try again.",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Access denied",
		Category: "auth",
		Action:   "This action is limited to staff.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewBookingNotFoundError は予約が見つからない場合のエラーを生成する。
func NewBookingNotFoundError(bookingID string) *APIError {
	return &APIError{
		Code:     ErrCodeBookingNotFound,
		Message:  fmt.Sprintf("Booking not found: %s", bookingID),
		Category: "booking",
		Action:   "Check the booking ID.",
	}
}

// NewSlotFullError は枠の定員超過エラーを生成する。
func NewSlotFullError() *APIError {
	return &APIError{
		Code:     ErrCodeSlotFull,
		Message:  "This Morning Party is fully booked",
		Category: "booking",
		Action:   "Pick another date.",
	}
}

// NewAlreadyBookedError は同一枠への重複予約エラーを生成する。
func NewAlreadyBookedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyBooked,
		Message:  "You already have a booking for this Morning Party",
		Category: "booking",
		Action:   "Check your bookings on the dashboard.",
	}
}

// NewNotCancellableError はキャンセルできない予約のエラーを生成する。
func NewNotCancellableError(status BookingStatus) *APIError {
	return &APIError{
		Code:     ErrCodeNotCancellable,
		Message:  fmt.Sprintf("A %s booking cannot be cancelled", status),
		Category: "booking",
		Action:   "Contact the team if you need help.",
	}
}

// NewUnknownWellnessError はカタログにないウェルネス体験のエラーを生成する。
func NewUnknownWellnessError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownWellness,
		Message:  fmt.Sprintf("Unknown wellness experience: %s", name),
		Category: "request",
		Action:   "Pick an experience from the catalog.",
	}
}

// NewUnknownDrinkError はカタログにないドリンクのエラーを生成する。
func NewUnknownDrinkError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownDrink,
		Message:  fmt.Sprintf("Unknown drink: %s", name),
		Category: "request",
		Action:   "Pick drinks from the catalog.",
	}
}

// NewDeliveryFailedError はリクエストメールの送信失敗エラーを生成する。
func NewDeliveryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeDeliveryFailed,
		Message:  "Failed to send request",
		Category: "system",
		Action:   "Please try again in a few minutes.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Please try again in a few minutes.",
	}
}

// NewCSRFError はCSRF検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}
