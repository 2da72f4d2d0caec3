package middleware

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/recipebox/internal/model"
)

// NewRequireStaffMiddleware はスタッフユーザー以外のリクエストを403で拒否するミドルウェアを返す。
// トークン認証ミドルウェアの内側に置く。ユーザーが解決されていない場合は401を返す。
func NewRequireStaffMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := UserFromContext(r.Context())
			if !ok {
				WriteUnauthorized(w)
				return
			}
			if !user.IsStaff {
				slog.Warn("staff-only endpoint denied",
					slog.Int64("user_id", user.ID),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, http.StatusForbidden, model.NewPermissionDeniedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
