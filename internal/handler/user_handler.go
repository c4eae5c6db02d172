package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/waterbar/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
	// Withdraw はユーザーの退会処理を実行する。
	// セッションと予約もまとめて削除される。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler は退会とスタッフ向けユーザー一覧のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	cookies AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。cookiesは退会時のセッションCookie削除に使う。
func NewUserHandler(service UserServiceInterface, cookies AuthHandlerConfig) *UserHandler {
	return &UserHandler{service: service, cookies: cookies}
}

type usersResponse struct {
	Users []*model.User `json:"users"`
}

// Withdraw はログイン中のユーザーを削除し、ブラウザのセッションCookieも消す。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	setSessionCookie(w, h.cookies, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// List はスタッフ向けにユーザー一覧を返す。
// GET /api/user, GET /api/admin/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usersResponse{Users: users})
}
