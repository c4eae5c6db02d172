package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/waterbar/internal/middleware"
	"github.com/hitoshi/waterbar/internal/model"
)

const sessionCookieName = "session_id"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, name, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.Session, *model.User, error)
	VerifyEmail(ctx context.Context, token string) (*model.User, error)
	ResendVerification(ctx context.Context, email string) error
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はメール・パスワード認証のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	authz   middleware.AdminAuthorizer
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。authzがnilの場合、MeのisAdminはロールのみで判定する。
func NewAuthHandler(service AuthServiceInterface, authz middleware.AdminAuthorizer, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		authz:   authz,
		config:  config,
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	Message string      `json:"message,omitempty"`
	User    *model.User `json:"user"`
	IsAdmin *bool       `json:"isAdmin,omitempty"`
}

// Register はユーザーを登録し、確認メールを送る。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, userResponse{
		Message: "Registration successful. Please check your email to verify your account.",
		User:    user,
	})
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを発行する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.setSessionCookie(w, session.ID, h.config.SessionMaxAge)
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

// Verify はメール確認リンクを処理する。
// GET /api/auth/verify?token=xxx
// ブラウザからのアクセスはログイン画面へリダイレクトし、JSONを要求された場合はユーザーを返す。
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.VerifyEmail(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, userResponse{Message: "Email verified", User: user})
		return
	}
	http.Redirect(w, r, h.config.BaseURL+"/login?verified=true", http.StatusSeeOther)
}

// Resend は確認メールを再送する。アカウントの有無は応答から判別できない。
// POST /api/auth/resend
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.service.ResendVerification(r.Context(), req.Email); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{
		Message: "If the account exists and is not verified, a new verification email has been sent.",
	})
}

// Logout はセッションを破棄する。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, messageResponse{Message: "Logged out"})
}

// Me は現在のログインユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	isAdmin := user.IsStaff()
	if h.authz != nil {
		allowed, err := h.authz.AllowAdmin(r.Context(), user)
		if err != nil {
			slog.Warn("admin policy evaluation failed", slog.String("error", err.Error()))
		} else {
			isAdmin = allowed
		}
	}

	writeJSON(w, http.StatusOK, userResponse{User: user, IsAdmin: &isAdmin})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	setSessionCookie(w, h.config, value, maxAge)
}

// setSessionCookie はセッションCookieを書き込む。maxAgeが負の場合は削除する。
func setSessionCookie(w http.ResponseWriter, config AuthHandlerConfig, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}
