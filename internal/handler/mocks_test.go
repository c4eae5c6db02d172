package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/waterbar/internal/booking"
	"github.com/hitoshi/waterbar/internal/concierge"
	"github.com/hitoshi/waterbar/internal/middleware"
	"github.com/hitoshi/waterbar/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	registerFn       func(ctx context.Context, name, email, password string) (*model.User, error)
	loginFn          func(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	verifyFn         func(ctx context.Context, token string) (*model.User, error)
	resendFn         func(ctx context.Context, email string) error
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, name, email, password)
	}
	return &model.User{ID: "user-1", Name: name, Email: email, Role: model.RoleUser}, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return &model.Session{ID: "sess-1", UserID: "user-1"}, &model.User{ID: "user-1", Email: email}, nil
}

func (m *mockAuthService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return &model.User{ID: "user-1", EmailVerified: true}, nil
}

func (m *mockAuthService) ResendVerification(ctx context.Context, email string) error {
	if m.resendFn != nil {
		return m.resendFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return &model.User{ID: "user-1", Role: model.RoleUser}, nil
}

type mockBookingService struct {
	createFn       func(ctx context.Context, userID, dateStr string) (*model.Booking, error)
	listForUserFn  func(ctx context.Context, userID string) ([]*model.Booking, error)
	countPendingFn func(ctx context.Context, userID string) (int, error)
	cancelFn       func(ctx context.Context, userID, bookingID string) (*model.Booking, error)
	qrCodeFn       func(ctx context.Context, userID, bookingID string) ([]byte, error)
	availabilityFn func(ctx context.Context, dateStr string) (*model.SlotAvailability, error)
	adminListFn    func(ctx context.Context, f booking.Filter) ([]*model.BookingDetail, error)
	updateStatusFn func(ctx context.Context, bookingID, status string) (*model.BookingDetail, error)
	exportFn       func(ctx context.Context, f booking.Filter, w io.Writer) (int, error)
}

func (m *mockBookingService) Create(ctx context.Context, userID, dateStr string) (*model.Booking, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, dateStr)
	}
	return &model.Booking{ID: "b-1", UserID: userID, Status: model.StatusPendingPayment}, nil
}

func (m *mockBookingService) ListForUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return []*model.Booking{}, nil
}

func (m *mockBookingService) CountPending(ctx context.Context, userID string) (int, error) {
	if m.countPendingFn != nil {
		return m.countPendingFn(ctx, userID)
	}
	return 0, nil
}

func (m *mockBookingService) Cancel(ctx context.Context, userID, bookingID string) (*model.Booking, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, userID, bookingID)
	}
	return &model.Booking{ID: bookingID, UserID: userID, Status: model.StatusCancelled}, nil
}

func (m *mockBookingService) QRCode(ctx context.Context, userID, bookingID string) ([]byte, error) {
	if m.qrCodeFn != nil {
		return m.qrCodeFn(ctx, userID, bookingID)
	}
	return []byte("\x89PNG"), nil
}

func (m *mockBookingService) Availability(ctx context.Context, dateStr string) (*model.SlotAvailability, error) {
	if m.availabilityFn != nil {
		return m.availabilityFn(ctx, dateStr)
	}
	return &model.SlotAvailability{Capacity: 25, Remaining: 25}, nil
}

func (m *mockBookingService) AdminList(ctx context.Context, f booking.Filter) ([]*model.BookingDetail, error) {
	if m.adminListFn != nil {
		return m.adminListFn(ctx, f)
	}
	return []*model.BookingDetail{}, nil
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, bookingID, status string) (*model.BookingDetail, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, bookingID, status)
	}
	return &model.BookingDetail{Booking: model.Booking{ID: bookingID, Status: model.BookingStatus(status)}}, nil
}

func (m *mockBookingService) Export(ctx context.Context, f booking.Filter, w io.Writer) (int, error) {
	if m.exportFn != nil {
		return m.exportFn(ctx, f, w)
	}
	n, err := w.Write([]byte("xlsx"))
	return n, err
}

type mockRequestService struct {
	submitFn func(ctx context.Context, userID string, in concierge.Input) (*model.WellnessRequest, error)
	listFn   func(ctx context.Context) ([]*model.WellnessRequest, error)
}

func (m *mockRequestService) Submit(ctx context.Context, userID string, in concierge.Input) (*model.WellnessRequest, error) {
	if m.submitFn != nil {
		return m.submitFn(ctx, userID, in)
	}
	return &model.WellnessRequest{ID: "req-1"}, nil
}

func (m *mockRequestService) List(ctx context.Context) ([]*model.WellnessRequest, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.WellnessRequest{}, nil
}

type mockUserService struct {
	listFn     func(ctx context.Context) ([]*model.User, error)
	withdrawFn func(ctx context.Context, userID string) error
}

func (m *mockUserService) List(ctx context.Context) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.User{}, nil
}

func (m *mockUserService) Withdraw(ctx context.Context, userID string) error {
	if m.withdrawFn != nil {
		return m.withdrawFn(ctx, userID)
	}
	return nil
}

type mockAuthorizer struct {
	allowFn func(ctx context.Context, user *model.User) (bool, error)
}

func (m *mockAuthorizer) AllowAdmin(ctx context.Context, user *model.User) (bool, error) {
	if m.allowFn != nil {
		return m.allowFn(ctx, user)
	}
	return user.IsStaff(), nil
}

// --- ヘルパー ---

// withUserID はセッションミドルウェアを通過した状態のリクエストを返す。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nbody: %s", err, w.Body.String())
	}
}

// assertAPIError はステータスコードとエラーコードを検証する。
func assertAPIError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	var body middleware.ErrorResponseBody
	decodeBody(t, w, &body)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}
