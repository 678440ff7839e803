// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/sponsorlink/internal/model"
)

// SessionCookieName はセッショントークンを保持するCookie名。
const SessionCookieName = "session_token"

// LoginPath は未認証のページ遷移をリダイレクトする先。
const LoginPath = "/login"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// principalContextKey はリクエストコンテキストに認証済みの主体を格納するためのキー。
var principalContextKey = contextKey("principal")

// PrincipalResolver はセッショントークンから主体を解決するインターフェース。
// auth.Serviceが実装する。
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*model.Principal, error)
}

// NewSessionMiddleware はCookieのセッショントークンから主体を解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未ログインや期限切れの場合も後続のハンドラーを呼び出す（主体なし）。
// 認証を必須とするルートにはRequireAuthを併用する。
func NewSessionMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			principal, err := resolver.Resolve(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to resolve session",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if principal == nil {
				next.ServeHTTP(w, r)
				return
			}

			recordUserID(r.Context(), principal.ID)
			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}

// RequireAuth は主体のないリクエストを拒否するミドルウェアを返す。
// ブラウザのページ遷移（HTMLを受け付けるGET）は/api配下であってもログイン画面へリダイレクトし、
// それ以外（fetch等のAPI呼び出し）には401を返す。
func RequireAuth() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if PrincipalFromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}

			if isPageNavigation(r) {
				http.Redirect(w, r, LoginRedirectURL(r.URL.RequestURI()), http.StatusFound)
				return
			}
			WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthenticationRequiredError())
		})
	}
}

// LoginRedirectURL はログイン後に元のパスへ戻るためのログイン画面URLを返す。
func LoginRedirectURL(path string) string {
	return LoginPath + "?redirect=" + url.QueryEscape(path)
}

func isPageNavigation(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// PrincipalFromContext はリクエストコンテキストから主体を取得する。
// 未ログインの場合はnilを返す。
func PrincipalFromContext(ctx context.Context) *model.Principal {
	p, _ := ctx.Value(principalContextKey).(*model.Principal)
	return p
}

// ContextWithPrincipal はコンテキストに主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithPrincipal(ctx context.Context, p *model.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}

// UserIDFromContext はリクエストコンテキストから主体のユーザーIDを取得する。
// 未ログインの場合は空文字列を返す。
func UserIDFromContext(ctx context.Context) string {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.ID
	}
	return ""
}
