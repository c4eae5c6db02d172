package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/waterbar/internal/model"
)

// withURLParam はchiのURLパラメータを注入する。
func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestBookingHandler_Create_Success(t *testing.T) {
	svc := &mockBookingService{
		createFn: func(ctx context.Context, userID, dateStr string) (*model.Booking, error) {
			if userID != "user-1" {
				t.Errorf("userID = %q, want %q", userID, "user-1")
			}
			if dateStr != "2026-11-02" {
				t.Errorf("date = %q, want %q", dateStr, "2026-11-02")
			}
			return &model.Booking{ID: "b-1", UserID: userID, Status: model.StatusPendingPayment, Experience: "Sunwarrior"}, nil
		},
	}
	h := NewBookingHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{"date":"2026-11-02"}`))
	req = withUserID(req, "user-1")
	w := httptest.NewRecorder()
	h.Create(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	var resp struct {
		Booking *model.Booking `json:"booking"`
		Message string         `json:"message"`
	}
	decodeBody(t, w, &resp)
	if resp.Message != "Booking created successfully" {
		t.Errorf("message = %q", resp.Message)
	}
	if resp.Booking == nil || resp.Booking.Status != model.StatusPendingPayment {
		t.Errorf("booking = %+v, want PENDING_PAYMENT", resp.Booking)
	}
}

func TestBookingHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"past", model.NewDateInPastError(), http.StatusBadRequest, model.ErrCodeDateInPast},
		{"too far", model.NewDateTooFarError(30), http.StatusBadRequest, model.ErrCodeDateTooFar},
		{"invalid date", model.NewInvalidDateError("tomorrow"), http.StatusBadRequest, model.ErrCodeInvalidDate},
		{"full", model.NewSlotFullError(), http.StatusConflict, model.ErrCodeSlotFull},
		{"already booked", model.NewAlreadyBookedError(), http.StatusConflict, model.ErrCodeAlreadyBooked},
		{"user gone", model.NewUserNotFoundError(), http.StatusNotFound, model.ErrCodeUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				createFn: func(ctx context.Context, userID, dateStr string) (*model.Booking, error) {
					return nil, tt.err
				},
			}
			h := NewBookingHandler(svc)
			req := withUserID(httptest.NewRequest(http.MethodPost, "/api/bookings", strings.NewReader(`{"date":"x"}`)), "user-1")
			w := httptest.NewRecorder()
			h.Create(w, req)
			assertAPIError(t, w, tt.status, tt.code)
		})
	}
}

func TestBookingHandler_RequiresUser(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})

	handlers := map[string]http.HandlerFunc{
		"list":   h.List,
		"create": h.Create,
		"count":  h.Count,
		"cancel": h.Cancel,
		"qr":     h.QRCode,
	}
	for name, fn := range handlers {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
			w := httptest.NewRecorder()
			fn(w, req)
			assertAPIError(t, w, http.StatusUnauthorized, model.ErrCodeUnauthorized)
		})
	}
}

func TestBookingHandler_List(t *testing.T) {
	svc := &mockBookingService{
		listForUserFn: func(ctx context.Context, userID string) ([]*model.Booking, error) {
			return []*model.Booking{{ID: "b-2"}, {ID: "b-1"}}, nil
		},
	}
	h := NewBookingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/bookings", nil), "user-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	var resp struct {
		Bookings []*model.Booking `json:"bookings"`
	}
	decodeBody(t, w, &resp)
	if len(resp.Bookings) != 2 || resp.Bookings[0].ID != "b-2" {
		t.Errorf("bookings = %+v, want [b-2 b-1]", resp.Bookings)
	}
}

func TestBookingHandler_List_EmptyIsArray(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/bookings", nil), "user-1")
	w := httptest.NewRecorder()
	h.List(w, req)

	if !strings.Contains(w.Body.String(), `"bookings":[]`) {
		t.Errorf("body = %s, want empty array", w.Body.String())
	}
}

func TestBookingHandler_Count(t *testing.T) {
	svc := &mockBookingService{
		countPendingFn: func(ctx context.Context, userID string) (int, error) { return 3, nil },
	}
	h := NewBookingHandler(svc)

	req := withUserID(httptest.NewRequest(http.MethodGet, "/api/bookings/count", nil), "user-1")
	w := httptest.NewRecorder()
	h.Count(w, req)

	var resp struct {
		Count int `json:"count"`
	}
	decodeBody(t, w, &resp)
	if resp.Count != 3 {
		t.Errorf("count = %d, want 3", resp.Count)
	}
}

func TestBookingHandler_Cancel(t *testing.T) {
	var gotID string
	svc := &mockBookingService{
		cancelFn: func(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
			gotID = bookingID
			return &model.Booking{ID: bookingID, Status: model.StatusCancelled}, nil
		},
	}
	h := NewBookingHandler(svc)

	req := httptest.NewRequest(http.MethodDelete, "/api/bookings/b-9", nil)
	req = withUserID(withURLParam(req, "id", "b-9"), "user-1")
	w := httptest.NewRecorder()
	h.Cancel(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotID != "b-9" {
		t.Errorf("bookingID = %q, want %q", gotID, "b-9")
	}
}

func TestBookingHandler_Cancel_NotCancellable(t *testing.T) {
	svc := &mockBookingService{
		cancelFn: func(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
			return nil, model.NewNotCancellableError(model.StatusCompleted)
		},
	}
	h := NewBookingHandler(svc)

	req := withUserID(withURLParam(httptest.NewRequest(http.MethodDelete, "/api/bookings/b-1", nil), "id", "b-1"), "user-1")
	w := httptest.NewRecorder()
	h.Cancel(w, req)

	assertAPIError(t, w, http.StatusConflict, model.ErrCodeNotCancellable)
}

func TestBookingHandler_QRCode(t *testing.T) {
	h := NewBookingHandler(&mockBookingService{})

	req := withUserID(withURLParam(httptest.NewRequest(http.MethodGet, "/api/bookings/b-1/qr", nil), "id", "b-1"), "user-1")
	w := httptest.NewRecorder()
	h.QRCode(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if w.Body.String() != "\x89PNG" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestBookingHandler_QRCode_NotFound(t *testing.T) {
	svc := &mockBookingService{
		qrCodeFn: func(ctx context.Context, userID, bookingID string) ([]byte, error) {
			return nil, model.NewBookingNotFoundError(bookingID)
		},
	}
	h := NewBookingHandler(svc)

	req := withUserID(withURLParam(httptest.NewRequest(http.MethodGet, "/api/bookings/b-1/qr", nil), "id", "b-1"), "user-2")
	w := httptest.NewRecorder()
	h.QRCode(w, req)

	assertAPIError(t, w, http.StatusNotFound, model.ErrCodeBookingNotFound)
}
