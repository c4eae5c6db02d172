package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/waterbar/internal/model"
)

const (
	// csrfCookieName はフロントエンドのJavaScriptから読むため、HttpOnlyにしない。
	csrfCookieName   = "csrf_token"
	csrfHeaderName   = "X-CSRF-Token"
	csrfCookieMaxAge = 86400
	csrfTokenBytes   = 32
)

// CSRFConfig はCSRFミドルウェアの設定。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
	// AllowedOrigins はカンマ区切りの信頼するオリジン。空の場合は同一ホストのみ。
	AllowedOrigins string
}

// csrfGuard はダブルサブミットトークンとOriginヘッダーを検証する。
type csrfGuard struct {
	config  CSRFConfig
	origins []string
}

func newCSRFGuard(config CSRFConfig) *csrfGuard {
	g := &csrfGuard{config: config}
	for _, o := range strings.Split(config.AllowedOrigins, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			g.origins = append(g.origins, strings.ToLower(o))
		}
	}
	return g
}

// NewCSRFMiddleware はダブルサブミット方式のCSRF対策ミドルウェアを返す。
// GET, HEAD, OPTIONSは検証せず、トークンCookieがなければ発行する。
// 状態変更メソッドはCookieとX-CSRF-Tokenヘッダーの一致を必須とし、
// Originヘッダーがあれば信頼するオリジンか同一ホストであることも確認する。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	g := newCSRFGuard(config)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				if _, ok := cookieToken(r); !ok {
					if _, err := g.issue(w); err != nil {
						slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			if reason := g.validate(r); reason != "" {
				slog.Warn("CSRF validation failed",
					slog.String("reason", reason),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewCSRFError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// validate は検証失敗の理由を返す。成功時は空文字。
func (g *csrfGuard) validate(r *http.Request) string {
	token, ok := cookieToken(r)
	if !ok {
		return "missing cookie token"
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return "missing header token"
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(header)) != 1 {
		return "token mismatch"
	}
	if origin := r.Header.Get("Origin"); origin != "" && !g.trusted(origin, r.Host) {
		return "untrusted origin"
	}
	return ""
}

func (g *csrfGuard) trusted(origin, host string) bool {
	origin = strings.ToLower(strings.TrimRight(origin, "/"))
	for _, o := range g.origins {
		if o == origin {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, host)
}

// NewCSRFTokenHandler はGET /api/csrf-tokenのハンドラーを返す。
// 既存のトークンCookieがあればそれを返し、なければ発行する。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	g := newCSRFGuard(config)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := cookieToken(r)
		if !ok {
			var err error
			if token, err = g.issue(w); err != nil {
				slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				WriteInternalServerError(w)
				return
			}
		}

		w.Header().Set("Cache-Control", "no-store")
		writeJSONBody(w, http.StatusOK, map[string]string{"token": token})
	})
}

func cookieToken(r *http.Request) (string, bool) {
	c, err := r.Cookie(csrfCookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func isSafeMethod(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

func (g *csrfGuard) issue(w http.ResponseWriter) (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   g.config.CookieDomain,
		MaxAge:   csrfCookieMaxAge,
		Secure:   g.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}
