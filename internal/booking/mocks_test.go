package booking

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/waterbar/internal/catalog"
	"github.com/hitoshi/waterbar/internal/events"
	"github.com/hitoshi/waterbar/internal/mail"
	"github.com/hitoshi/waterbar/internal/metrics"
	"github.com/hitoshi/waterbar/internal/model"
	"github.com/hitoshi/waterbar/internal/repository"
)

// --- モック定義 ---

type mockBookingRepo struct {
	createInSlotFn   func(ctx context.Context, nb repository.NewBooking) (*model.Booking, error)
	findByIDFn       func(ctx context.Context, id string) (*model.Booking, error)
	findDetailByIDFn func(ctx context.Context, id string) (*model.BookingDetail, error)
	listByUserFn     func(ctx context.Context, userID string) ([]*model.Booking, error)
	countFn          func(ctx context.Context, userID string, status model.BookingStatus) (int, error)
	updateStatusFn   func(ctx context.Context, id string, status model.BookingStatus) (bool, error)
	reactivateFn     func(ctx context.Context, id string, status model.BookingStatus) (bool, error)
	listDetailedFn   func(ctx context.Context) ([]*model.BookingDetail, error)
	slotUsageFn      func(ctx context.Context, start time.Time) (int, int, bool, error)
}

func (m *mockBookingRepo) CreateInSlot(ctx context.Context, nb repository.NewBooking) (*model.Booking, error) {
	if m.createInSlotFn != nil {
		return m.createInSlotFn(ctx, nb)
	}
	return nil, nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBookingRepo) FindDetailByID(ctx context.Context, id string) (*model.BookingDetail, error) {
	if m.findDetailByIDFn != nil {
		return m.findDetailByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockBookingRepo) ListByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockBookingRepo) CountByUserAndStatus(ctx context.Context, userID string, status model.BookingStatus) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID, status)
	}
	return 0, nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id string, status model.BookingStatus) (bool, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return true, nil
}

func (m *mockBookingRepo) Reactivate(ctx context.Context, id string, status model.BookingStatus) (bool, error) {
	if m.reactivateFn != nil {
		return m.reactivateFn(ctx, id, status)
	}
	return true, nil
}

func (m *mockBookingRepo) ListDetailed(ctx context.Context) ([]*model.BookingDetail, error) {
	if m.listDetailedFn != nil {
		return m.listDetailedFn(ctx)
	}
	return nil, nil
}

func (m *mockBookingRepo) SlotUsage(ctx context.Context, start time.Time) (int, int, bool, error) {
	if m.slotUsageFn != nil {
		return m.slotUsageFn(ctx, start)
	}
	return 0, 0, false, nil
}

func (m *mockBookingRepo) SettleEnded(_ context.Context, _ time.Time) (int64, int64, error) {
	return 0, 0, nil
}

func (m *mockBookingRepo) ListDueReminders(_ context.Context, _, _ time.Time) ([]*model.BookingDetail, error) {
	return nil, nil
}

func (m *mockBookingRepo) MarkReminded(_ context.Context, _ string, _ time.Time) error {
	return nil
}

type mockUserRepo struct {
	repository.UserRepository
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, Name: "Aya", Email: "aya@example.com"}, nil
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type publishedEvent struct {
	Type    string
	Payload events.BookingPayload
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) PublishJSON(eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var bp events.BookingPayload
	if err := json.Unmarshal(raw, &bp); err != nil {
		return err
	}
	p.events = append(p.events, publishedEvent{Type: eventType, Payload: bp})
	return nil
}

// --- compile-time interface checks ---
var _ repository.BookingRepository = (*mockBookingRepo)(nil)
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ mail.Mailer = (*recordingMailer)(nil)
var _ events.Publisher = (*recordingPublisher)(nil)

// bookingID はテスト用の予約ID。
const bookingID = "7d3f0c6e-2b1a-4c8e-9f4a-1e2d3c4b5a60"

// venue は会場のタイムゾーン（UTC+4、夏時間なし）。
var venue = time.FixedZone("GST", 4*60*60)

type testEnv struct {
	svc       *Service
	repo      *mockBookingRepo
	users     *mockUserRepo
	mailer    *recordingMailer
	publisher *recordingPublisher
	registry  *prometheus.Registry
}

// newTestEnv は2030-01-06（日）10:00を現在時刻とするServiceを生成する。
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cat, err := catalog.Load("")
	if err != nil {
		t.Fatalf("catalog.Load() error = %v", err)
	}

	env := &testEnv{
		repo:      &mockBookingRepo{},
		users:     &mockUserRepo{},
		mailer:    &recordingMailer{},
		publisher: &recordingPublisher{},
		registry:  prometheus.NewRegistry(),
	}
	env.svc = NewService(env.repo, env.users, cat, env.mailer, env.publisher,
		metrics.NewCollector(env.registry),
		Config{Location: venue, SlotCapacity: 20, MaxAdvanceDays: 90},
	)
	env.svc.now = func() time.Time {
		return time.Date(2030, 1, 6, 10, 0, 0, 0, venue)
	}
	return env
}

func (e *testEnv) counter(t *testing.T, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := e.registry.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			got := map[string]string{}
			for _, lp := range m.GetLabel() {
				got[lp.GetName()] = lp.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue next
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
