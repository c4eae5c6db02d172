package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/waterbar/internal/events"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier は全イベントをJSONで外部URLにPOSTする。
// clientにはSSRF対策済みのクライアント（security.WebhookGuard.Client）を渡す。
type WebhookNotifier struct {
	client  *http.Client
	url     string
	timeout time.Duration
}

// NewWebhookNotifier はWebhookNotifierを生成する。
func NewWebhookNotifier(client *http.Client, url string) *WebhookNotifier {
	return &WebhookNotifier{client: client, url: url, timeout: defaultWebhookTimeout}
}

// Register はバスの全イベントを購読する。
func (n *WebhookNotifier) Register(bus *events.Bus) {
	bus.SubscribeAll(n.Handle)
}

// Handle はイベントを送信する。2xx以外の応答はエラーとする。
func (n *WebhookNotifier) Handle(event *events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "waterbar-webhook/1.0")
	req.Header.Set("X-Waterbar-Event", event.Type)

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
