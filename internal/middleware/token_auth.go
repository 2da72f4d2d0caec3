// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/recipebox/internal/metrics"
	"github.com/hitoshi/recipebox/internal/model"
)

// tokenScheme はAuthorizationヘッダーのスキーム名。
const tokenScheme = "Token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
var userIDContextKey = contextKey("user_id")

// userContextKey は認証済みユーザー本体を格納するためのキー。
var userContextKey = contextKey("user")

// TokenAuthenticator はトークンからユーザーを解決するインターフェース。
// auth.Serviceが実装する。無効なトークンや非アクティブユーザーの場合はnilを返す。
type TokenAuthenticator interface {
	UserForToken(ctx context.Context, key string) (*model.User, error)
}

// NewTokenAuthMiddleware は "Authorization: Token <key>" ヘッダーを検証するミドルウェアを返す。
// 認証済みユーザーとそのIDをリクエストコンテキストに注入する。
// ヘッダーの欠落・不正・無効トークンはいずれも同じ401レスポンスになる。
func NewTokenAuthMiddleware(authenticator TokenAuthenticator, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := parseTokenHeader(r.Header.Get("Authorization"))
			if !ok {
				collector.RecordAuthFailure(metrics.AuthFailureMissingToken)
				WriteUnauthorized(w)
				return
			}

			user, err := authenticator.UserForToken(r.Context(), key)
			if err != nil {
				slog.Error("failed to resolve token",
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
				return
			}
			if user == nil {
				WriteUnauthorized(w)
				return
			}

			ctx := ContextWithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// parseTokenHeader は "Token <key>" 形式のヘッダーからキーを取り出す。
// スキーム名の大文字小文字は区別しない。
func parseTokenHeader(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], tokenScheme) {
		return "", false
	}
	return parts[1], true
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// トークン認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	if !ok || userID == 0 {
		return 0, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// ロギングミドルウェアの内側で呼ばれた場合はアクセスログにもユーザーIDを記録させる。
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
	return context.WithValue(ctx, userIDContextKey, userID)
}

// ContextWithUser は認証済みユーザーとそのIDをコンテキストに注入する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	ctx = ContextWithUserID(ctx, user.ID)
	return context.WithValue(ctx, userContextKey, user)
}

// UserFromContext はトークン認証ミドルウェアが解決したユーザーを返す。
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	return user, ok && user != nil
}
