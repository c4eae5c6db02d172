package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testLimiter(t *testing.T, generalBurst, bookingBurst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate:     rate.Limit(0.001),
		GeneralBurst:    generalBurst,
		BookingRate:     rate.Limit(0.001),
		BookingBurst:    bookingBurst,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func requestAs(userID, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/bookings", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	if userID != "" {
		req = req.WithContext(ContextWithUserID(req.Context(), userID))
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

var noop = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

func TestRateLimit_AllowsWithinBurstThenReturns429(t *testing.T) {
	rl := testLimiter(t, 3, 1)
	h := rl.GeneralMiddleware()(noop)

	for i := 0; i < 3; i++ {
		if w := serve(h, requestAs("u-1", "")); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, w.Code)
		}
	}

	w := serve(h, requestAs("u-1", ""))
	assertErrorCode(t, w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED")
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

func TestRateLimit_IsolatesUsers(t *testing.T) {
	rl := testLimiter(t, 1, 1)
	h := rl.GeneralMiddleware()(noop)

	serve(h, requestAs("u-1", ""))
	if w := serve(h, requestAs("u-1", "")); w.Code != http.StatusTooManyRequests {
		t.Errorf("u-1 second request: status = %d, want 429", w.Code)
	}
	if w := serve(h, requestAs("u-2", "")); w.Code != http.StatusOK {
		t.Errorf("u-2 first request: status = %d, want 200", w.Code)
	}
	if got := rl.GeneralLimiterCount(); got != 2 {
		t.Errorf("GeneralLimiterCount() = %d, want 2", got)
	}
}

func TestRateLimit_AnonymousKeyedByIP(t *testing.T) {
	rl := testLimiter(t, 1, 1)
	h := rl.GeneralMiddleware()(noop)

	if w := serve(h, requestAs("", "203.0.113.5:4000")); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w := serve(h, requestAs("", "203.0.113.5:4001")); w.Code != http.StatusTooManyRequests {
		t.Errorf("same IP different port: status = %d, want 429", w.Code)
	}
	if w := serve(h, requestAs("", "198.51.100.7:4000")); w.Code != http.StatusOK {
		t.Errorf("other IP: status = %d, want 200", w.Code)
	}
}

func TestRateLimit_BookingIndependentFromGeneral(t *testing.T) {
	rl := testLimiter(t, 5, 1)
	general := rl.GeneralMiddleware()(noop)
	booking := rl.BookingMiddleware()(noop)

	serve(booking, requestAs("u-1", ""))
	if w := serve(booking, requestAs("u-1", "")); w.Code != http.StatusTooManyRequests {
		t.Errorf("booking limit: status = %d, want 429", w.Code)
	}
	if w := serve(general, requestAs("u-1", "")); w.Code != http.StatusOK {
		t.Errorf("general limit should be unaffected: status = %d", w.Code)
	}
	if rl.BookingLimiterCount() != 1 {
		t.Errorf("BookingLimiterCount() = %d, want 1", rl.BookingLimiterCount())
	}
}

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := testLimiter(t, 5, 5)
	serve(rl.GeneralMiddleware()(noop), requestAs("u-1", ""))
	serve(rl.BookingMiddleware()(noop), requestAs("u-1", ""))

	rl.cleanup(time.Now().Add(time.Minute))
	if rl.GeneralLimiterCount() != 1 {
		t.Fatalf("fresh entries should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Hour))
	if rl.GeneralLimiterCount() != 0 || rl.BookingLimiterCount() != 0 {
		t.Errorf("expired entries should be removed: general=%d booking=%d",
			rl.GeneralLimiterCount(), rl.BookingLimiterCount())
	}
}

func TestNewRateLimiterConfig(t *testing.T) {
	c := NewRateLimiterConfig(120, 10)
	if c.GeneralRate != rate.Limit(2) || c.GeneralBurst != 120 {
		t.Errorf("general = %v/%d, want 2/120", c.GeneralRate, c.GeneralBurst)
	}
	if c.BookingBurst != 10 {
		t.Errorf("booking burst = %d, want 10", c.BookingBurst)
	}
	if DefaultRateLimiterConfig() != c {
		t.Error("DefaultRateLimiterConfig() should be 120/10 per minute")
	}
}
