package security

import (
	"fmt"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// blockedPrefixes は送信先として拒否するアドレス範囲。
// safeurlはDNS解決後のアドレスでも検証するため、ここでは登録時の静的検証に使う。
var blockedPrefixes = []netip.Prefix{
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"), // クラウドメタデータを含む
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// WebhookGuard は予約イベントを外部へ送るWebhookのSSRF対策。
type WebhookGuard struct {
	timeout   time.Duration
	allowHTTP bool
}

// NewWebhookGuard はWebhookGuardを生成する。allowHTTPがfalseの場合はhttpsのみ許可する。
func NewWebhookGuard(timeout time.Duration, allowHTTP bool) *WebhookGuard {
	return &WebhookGuard{timeout: timeout, allowHTTP: allowHTTP}
}

func (g *WebhookGuard) schemes() []string {
	if g.allowHTTP {
		return []string{"https", "http"}
	}
	return []string{"https"}
}

// Client はプライベート・ループバック・リンクローカル宛ての接続を拒否するHTTPクライアントを返す。
func (g *WebhookGuard) Client() *http.Client {
	ports := []int{443}
	if g.allowHTTP {
		ports = append(ports, 80)
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(g.timeout).
		SetAllowedSchemes(g.schemes()...).
		SetAllowedPorts(ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateURL は送信先URLを静的に検証する。DNS解決は行わない。
func (g *WebhookGuard) ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty webhook URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid webhook URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, s := range g.schemes() {
		if scheme == s {
			allowed = true
		}
	}
	if !allowed {
		return fmt.Errorf("webhook scheme %q is not allowed (allowed: %v)", u.Scheme, g.schemes())
	}
	if u.User != nil {
		return fmt.Errorf("webhook URL must not carry credentials")
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("webhook URL has no host")
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked webhook host: %s", host)
	}
	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		for _, p := range blockedPrefixes {
			if p.Contains(addr) {
				return fmt.Errorf("blocked webhook address: %s", addr)
			}
		}
	}
	return nil
}
