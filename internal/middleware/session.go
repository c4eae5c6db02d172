// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/waterbar/internal/model"
)

const sessionCookieName = "session_id"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	userIDContextKey = contextKey("user_id")
	userContextKey   = contextKey("user")
	holderContextKey = contextKey("user_id_holder")
)

// SessionFinder はセッションの検索に必要なインターフェース。
// repository.SessionRepositoryの部分集合として定義する。
type SessionFinder interface {
	FindByID(ctx context.Context, id string) (*model.Session, error)
}

// UserFinder はセッションの持ち主を読み込むためのインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// セッションとユーザーの両方が有効な場合のみ次のハンドラに進める。
// ユーザーIDとユーザーをリクエストコンテキストに注入する。
func NewSessionMiddleware(sessions SessionFinder, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := loadUser(r, sessions, users)
			if err != nil {
				slog.Error("failed to load session", slog.String("error", err.Error()))
			}
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

func loadUser(r *http.Request, sessions SessionFinder, users UserFinder) (*model.User, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	session, err := sessions.FindByID(r.Context(), cookie.Value)
	if err != nil || session == nil {
		return nil, err
	}
	// 削除済みユーザーのセッションは無効
	return users.FindByID(r.Context(), session.UserID)
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// UserFromContext はセッションミドルウェアが読み込んだユーザーを返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	u, ok := ctx.Value(userContextKey).(*model.User)
	return u, ok && u != nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	if h, ok := ctx.Value(holderContextKey).(*userIDHolder); ok {
		h.set(userID)
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithUser はコンテキストにユーザーとそのIDを注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	ctx = context.WithValue(ctx, userContextKey, user)
	return ContextWithUserID(ctx, user.ID)
}

// userIDHolder は外側のミドルウェア（ログ）に認証済みユーザーIDを伝える。
type userIDHolder struct {
	mu sync.Mutex
	id string
}

func contextWithHolder(ctx context.Context, h *userIDHolder) context.Context {
	return context.WithValue(ctx, holderContextKey, h)
}

func (h *userIDHolder) set(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.id = id
}

func (h *userIDHolder) get(ctx context.Context) string {
	h.mu.Lock()
	id := h.id
	h.mu.Unlock()
	if id == "" {
		id, _ = UserIDFromContext(ctx)
	}
	return id
}
