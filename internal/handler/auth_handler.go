// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/sponsorlink/internal/auth"
	"github.com/hitoshi/sponsorlink/internal/middleware"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge time.Duration // セッションCookieの有効期間
}

// AuthHandler はログイン・ログアウト・セッション確認のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.SessionMaxAge <= 0 {
		config.SessionMaxAge = auth.DefaultSessionMaxAge
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// loginRequest はログインリクエストのボディ。
// 未入力の判定はサービス層で行い、ここでは形式のみ検証する。
type loginRequest struct {
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"max=72"`
}

// userEnvelope はセッション系エンドポイントのレスポンス。未ログイン時はuserがnull。
type userEnvelope struct {
	User *principalResponse `json:"user"`
}

// Login はメールアドレスとパスワードで認証し、セッションCookieを設定する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, r, "login", err)
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, "login", err)
		return
	}

	h.setSessionCookie(w, result.Session.Token, int(h.config.SessionMaxAge.Seconds()))
	writeJSON(w, http.StatusOK, userEnvelope{User: toPrincipalResponse(result.Principal)})
}

// Logout はセッションを破棄する。
// セッション削除に失敗してもCookieは必ずクリアし、200を返す。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout",
				slog.String("user_id", middleware.UserIDFromContext(r.Context())),
				slog.String("error", logoutErr.Error()),
			)
		}
	}

	h.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Session は現在のログインユーザーを返す。未ログイン・期限切れ・解決失敗はいずれもnullを返す。
// GET /api/auth/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, userEnvelope{User: toPrincipalResponse(p)})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
