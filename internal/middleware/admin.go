package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/waterbar/internal/model"
)

// AdminAuthorizer は管理画面へのアクセス可否を判定する。policy.Authorizerが満たす。
type AdminAuthorizer interface {
	AllowAdmin(ctx context.Context, user *model.User) (bool, error)
}

// NewAdminGuard は管理者のみを通すミドルウェアを返す。セッションミドルウェアの後に配置する。
func NewAdminGuard(authz AdminAuthorizer) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			allowed, err := authz.AllowAdmin(r.Context(), user)
			if err != nil {
				slog.Error("admin policy evaluation failed",
					slog.String("user_id", user.ID),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if !allowed {
				slog.Warn("admin access denied", slog.String("user_id", user.ID))
				WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
