package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/waterbar/internal/model"
)

// BookingServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
type BookingServiceInterface interface {
	Create(ctx context.Context, userID, dateStr string) (*model.Booking, error)
	ListForUser(ctx context.Context, userID string) ([]*model.Booking, error)
	CountPending(ctx context.Context, userID string) (int, error)
	Cancel(ctx context.Context, userID, bookingID string) (*model.Booking, error)
	QRCode(ctx context.Context, userID, bookingID string) ([]byte, error)
}

// BookingHandler は利用者向け予約のHTTPハンドラー。
type BookingHandler struct {
	service BookingServiceInterface
}

// NewBookingHandler はBookingHandlerを生成する。
func NewBookingHandler(service BookingServiceInterface) *BookingHandler {
	return &BookingHandler{service: service}
}

type createBookingRequest struct {
	Date string `json:"date"`
}

type bookingsResponse struct {
	Bookings []*model.Booking `json:"bookings"`
}

type bookingCreatedResponse struct {
	Booking *model.Booking `json:"booking"`
	Message string         `json:"message"`
}

type countResponse struct {
	Count int `json:"count"`
}

// List はログインユーザーの予約を日付の新しい順に返す。
// GET /api/bookings
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	bookings, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingsResponse{Bookings: bookings})
}

// Create はモーニングパーティーを予約する。
// POST /api/bookings
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	var req createBookingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	b, err := h.service.Create(r.Context(), userID, req.Date)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingCreatedResponse{
		Booking: b,
		Message: "Booking created successfully",
	})
}

// Count は支払い待ちの予約数を返す。
// GET /api/bookings/count
func (h *BookingHandler) Count(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	n, err := h.service.CountPending(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: n})
}

// Cancel は本人の予約をキャンセルする。
// DELETE /api/bookings/{id}
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	b, err := h.service.Cancel(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// QRCode はチェックイン用QRコードのPNGを返す。
// GET /api/bookings/{id}/qr
func (h *BookingHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	png, err := h.service.QRCode(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	w.Header().Set("Cache-Control", "private, no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
