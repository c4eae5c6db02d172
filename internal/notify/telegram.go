// Package notify はドメインイベントをスタッフ向けの外部チャネルへ転送する。
package notify

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/hitoshi/waterbar/internal/events"
)

// Sender はTelegram Bot APIへの送信インターフェース。*tgbotapi.BotAPIが満たす。
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// NewTelegramBot はトークンからBot APIクライアントを生成する。
func NewTelegramBot(token string) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect telegram bot: %w", err)
	}
	return bot, nil
}

// TelegramNotifier は予約とリクエストのイベントをスタッフのチャットに投稿する。
type TelegramNotifier struct {
	sender Sender
	chatID int64
	loc    *time.Location
}

// NewTelegramNotifier はTelegramNotifierを生成する。
func NewTelegramNotifier(sender Sender, chatID int64, loc *time.Location) *TelegramNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &TelegramNotifier{sender: sender, chatID: chatID, loc: loc}
}

// Register はバスの通知対象イベントを購読する。
func (n *TelegramNotifier) Register(bus *events.Bus) {
	for _, t := range []string{
		events.TypeBookingCreated,
		events.TypeBookingStatusChanged,
		events.TypeBookingCancelled,
		events.TypeRequestCreated,
	} {
		bus.Subscribe(t, n.Handle)
	}
}

// Handle はイベントをメッセージにして送信する。
func (n *TelegramNotifier) Handle(event *events.Event) error {
	text, err := n.format(event)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (n *TelegramNotifier) format(event *events.Event) (string, error) {
	switch event.Type {
	case events.TypeBookingCreated, events.TypeBookingStatusChanged, events.TypeBookingCancelled:
		var p events.BookingPayload
		if err := event.Decode(&p); err != nil {
			return "", err
		}
		return n.formatBooking(event.Type, p), nil
	case events.TypeRequestCreated:
		var p events.RequestPayload
		if err := event.Decode(&p); err != nil {
			return "", err
		}
		drinks := "None specified"
		if len(p.Drinks) > 0 {
			drinks = strings.Join(p.Drinks, ", ")
		}
		return fmt.Sprintf("New wellness request\n%s <%s>\nExperience: %s\nDrinks: %s",
			p.UserName, p.Email, p.WellnessType, drinks), nil
	}
	return "", nil
}

func (n *TelegramNotifier) formatBooking(eventType string, p events.BookingPayload) string {
	var b strings.Builder
	switch eventType {
	case events.TypeBookingCreated:
		b.WriteString("New booking")
	case events.TypeBookingCancelled:
		b.WriteString("Booking cancelled")
	default:
		fmt.Fprintf(&b, "Booking status: %s -> %s", p.PreviousStatus, p.Status)
	}
	fmt.Fprintf(&b, "\n%s", p.Date.In(n.loc).Format("Mon Jan 2, 3:04 PM"))
	if p.UserName != "" || p.UserEmail != "" {
		fmt.Fprintf(&b, "\n%s <%s>", p.UserName, p.UserEmail)
	}
	if p.Experience != "" {
		fmt.Fprintf(&b, "\nExperience: %s", p.Experience)
	}
	fmt.Fprintf(&b, "\nID: %s", p.BookingID)
	return b.String()
}

var _ Sender = (*tgbotapi.BotAPI)(nil)
