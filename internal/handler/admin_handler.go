package handler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/waterbar/internal/booking"
	"github.com/hitoshi/waterbar/internal/model"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AdminBookingServiceInterface は管理画面の予約操作に必要なサービスインターフェース。
type AdminBookingServiceInterface interface {
	AdminList(ctx context.Context, f booking.Filter) ([]*model.BookingDetail, error)
	UpdateStatus(ctx context.Context, bookingID, status string) (*model.BookingDetail, error)
	Export(ctx context.Context, f booking.Filter, w io.Writer) (int, error)
}

// RequestListerInterface はウェルネスリクエスト一覧の取得に必要なインターフェース。
type RequestListerInterface interface {
	List(ctx context.Context) ([]*model.WellnessRequest, error)
}

// AdminHandler はスタッフ向け管理画面のHTTPハンドラー。
type AdminHandler struct {
	bookings AdminBookingServiceInterface
	requests RequestListerInterface
	now      func() time.Time
}

// NewAdminHandler はAdminHandlerを生成する。
func NewAdminHandler(bookings AdminBookingServiceInterface, requests RequestListerInterface) *AdminHandler {
	return &AdminHandler{
		bookings: bookings,
		requests: requests,
		now:      time.Now,
	}
}

type updateStatusRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ListBookings は絞り込み・並べ替え済みの全予約を返す。
// GET /api/admin/bookings?status=&range=&sort=
func (h *AdminHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	bookings, err := h.bookings.AdminList(r.Context(), f)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if bookings == nil {
		bookings = []*model.BookingDetail{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

// UpdateBookingStatus は予約ステータスを変更する。
// PATCH /api/admin/bookings?id=xxx, PATCH /api/admin/bookings/{id}
// IDはパス、クエリ、ボディの順に参照する。
func (h *AdminHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if id == "" {
		id = r.URL.Query().Get("id")
	}
	if id == "" {
		id = req.ID
	}

	updated, err := h.bookings.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// ExportBookings は絞り込んだ予約をxlsxでダウンロードさせる。
// GET /api/admin/bookings/export?status=&range=&sort=
func (h *AdminHandler) ExportBookings(w http.ResponseWriter, r *http.Request) {
	f, ok := parseFilter(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	n, err := h.bookings.Export(r.Context(), f, &buf)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("bookings-%s.xlsx", h.now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("failed to write export", slog.String("error", err.Error()))
		return
	}
	slog.Info("bookings exported", slog.Int("rows", n))
}

// ListRequests はウェルネスリクエストを新しい順に返す。
// GET /api/admin/requests
func (h *AdminHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.requests.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reqs)
}

func parseFilter(w http.ResponseWriter, r *http.Request) (booking.Filter, bool) {
	q := r.URL.Query()
	f, err := booking.ParseFilter(q.Get("status"), q.Get("range"), q.Get("sort"))
	if err != nil {
		handleServiceError(w, err)
		return booking.Filter{}, false
	}
	return f, true
}
