// Package events はプロセス内のドメインイベント配信を提供する。
//
// ハンドラは購読ごとに別goroutineで実行し、パニックはハンドラ単位で回収する。
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// イベント種別
const (
	TypeBookingCreated       = "booking.created"
	TypeBookingStatusChanged = "booking.status_changed"
	TypeBookingCancelled     = "booking.cancelled"
	TypeRequestCreated       = "request.created"
)

// BookingPayload は予約イベントのペイロード。
type BookingPayload struct {
	BookingID      string    `json:"bookingId"`
	UserID         string    `json:"userId"`
	UserName       string    `json:"userName,omitempty"`
	UserEmail      string    `json:"userEmail,omitempty"`
	Date           time.Time `json:"date"`
	Status         string    `json:"status"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	Experience     string    `json:"experience,omitempty"`
}

// RequestPayload はウェルネスリクエストイベントのペイロード。
type RequestPayload struct {
	RequestID    string   `json:"requestId"`
	UserName     string   `json:"userName"`
	Email        string   `json:"email"`
	WellnessType string   `json:"wellnessType"`
	Drinks       []string `json:"drinks"`
}

// Event はバスを流れるイベント。
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Decode はペイロードをvにデコードする。
func (e *Event) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// Handler はイベントを処理する。
type Handler func(event *Event) error

// Publisher はイベント発行側のインターフェース。
type Publisher interface {
	PublishJSON(eventType string, payload any) error
}

// Bus はプロセス内のpub/sub。
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string][]Handler
	wildcard    []Handler
	wg          sync.WaitGroup
	logger      *slog.Logger
}

// NewBus は空のBusを生成する。
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string][]Handler),
		logger:      logger,
	}
}

// Subscribe はイベント種別に対するハンドラを登録する。
func (b *Bus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll は全種別のイベントを受け取るハンドラを登録する。
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish はイベントを購読者に非同期で配信する。
func (b *Bus) Publish(event *Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subscribers[event.Type])+len(b.wildcard))
	handlers = append(handlers, b.subscribers[event.Type]...)
	handlers = append(handlers, b.wildcard...)
	b.mu.RUnlock()

	for _, h := range handlers {
		b.wg.Add(1)
		go b.dispatch(h, event)
	}
}

// PublishJSON はペイロードをJSONにしてイベントを発行する。nilのBusでは何もしない。
func (b *Bus) PublishJSON(eventType string, payload any) error {
	if b == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	b.Publish(&Event{Type: eventType, Payload: raw})
	return nil
}

// Wait は配信中のハンドラがすべて終わるまで待つ。シャットダウン時に使う。
func (b *Bus) Wait() {
	b.wg.Wait()
}

func (b *Bus) dispatch(h Handler, event *Event) {
	defer b.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic",
				slog.String("event_type", event.Type),
				slog.String("event_id", event.ID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	if err := h(event); err != nil {
		b.logger.Warn("event handler failed",
			slog.String("event_type", event.Type),
			slog.String("event_id", event.ID),
			slog.String("error", err.Error()),
		)
	}
}

// compile-time interface check
var _ Publisher = (*Bus)(nil)
