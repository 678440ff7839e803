package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sponsorlink/internal/metrics"
	"github.com/hitoshi/sponsorlink/internal/middleware"
	"github.com/hitoshi/sponsorlink/internal/model"
)

// --- モック定義 ---

// stubResolver はトークンから主体を引くPrincipalResolverのモック。
type stubResolver map[string]*model.Principal

func (s stubResolver) Resolve(_ context.Context, token string) (*model.Principal, error) {
	return s[token], nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

func newTestRouterDeps() *RouterDeps {
	return &RouterDeps{
		Resolver: stubResolver{
			"org-token": orgPrincipal,
			"co-token":  companyPrincipal,
		},
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimiter:        middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig()),
		AuthService:        &mockAuthService{},
		ProposalService:    &mockProposalService{},
		ChatService:        &mockChatService{},
	}
}

func serve(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func withSessionCookie(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: token})
	return req
}

// --- テスト ---

func TestRouter_ProtectedRoutesRequireAuth(t *testing.T) {
	deps := newTestRouterDeps()
	t.Cleanup(deps.RateLimiter.Stop)
	router := NewRouter(deps)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/companies/company-1/proposals"},
		{http.MethodPost, "/api/companies/company-1/proposals"},
		{http.MethodGet, "/api/organizations/org-1/proposals"},
		{http.MethodGet, "/api/organizations/org-1/dashboard"},
		{http.MethodGet, "/api/proposals/p-1"},
		{http.MethodGet, "/api/chat/rooms?organizationId=org-1"},
		{http.MethodPost, "/api/chat/rooms"},
		{http.MethodGet, "/api/chat/rooms/room-1"},
		{http.MethodGet, "/api/chat/rooms/room-1/messages"},
		{http.MethodPost, "/api/chat/rooms/room-1/messages"},
		{http.MethodPost, "/api/chat/messages/msg-1/read"},
	}
	for _, rt := range routes {
		t.Run(rt.method+" "+rt.path, func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			req.Header.Set("Accept", "application/json")
			w := serve(t, router, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if got := parseAPIErrorResponse(t, w).Code; got != model.ErrCodeAuthenticationRequired {
				t.Errorf("code = %q, want %q", got, model.ErrCodeAuthenticationRequired)
			}
		})
	}
}

func TestRouter_BrowserNavigationRedirectsToLogin(t *testing.T) {
	deps := newTestRouterDeps()
	t.Cleanup(deps.RateLimiter.Stop)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodGet, "/api/organizations/org-1/dashboard", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	w := serve(t, router, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusFound)
	}
	want := "/login?redirect=%2Fapi%2Forganizations%2Forg-1%2Fdashboard"
	if got := w.Header().Get("Location"); got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}

	// ログイン済みなら同じ遷移でもハンドラーに到達する
	req = withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/organizations/org-1/dashboard", nil), "org-token")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,*/*;q=0.8")
	w = serve(t, router, req)
	if w.Code == http.StatusFound || w.Code == http.StatusUnauthorized {
		t.Errorf("status = %d, want the dashboard handler to run", w.Code)
	}
}

func TestRouter_UnknownSessionIsAnonymous(t *testing.T) {
	deps := newTestRouterDeps()
	t.Cleanup(deps.RateLimiter.Stop)
	router := NewRouter(deps)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/auth/session", nil), "expired-token")
	w := serve(t, router, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"user":null}` {
		t.Errorf("body = %s, want {\"user\":null}", got)
	}
}

func TestRouter_DispatchesWithPrincipal(t *testing.T) {
	deps := newTestRouterDeps()
	t.Cleanup(deps.RateLimiter.Stop)

	var gotRoomID string
	var gotPrincipal *model.Principal
	deps.ChatService = &mockChatService{
		getRoomForFn: func(ctx context.Context, p *model.Principal, roomID string) (*model.ChatRoom, error) {
			gotRoomID = roomID
			gotPrincipal = p
			return sampleRoom(roomID, 0), nil
		},
	}
	router := NewRouter(deps)

	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/room-9", nil), "co-token")
	w := serve(t, router, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", w.Code, http.StatusOK, w.Body.String())
	}
	if gotRoomID != "room-9" {
		t.Errorf("roomID = %q, want room-9", gotRoomID)
	}
	if gotPrincipal != companyPrincipal {
		t.Errorf("principal = %+v, want company principal", gotPrincipal)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be applied")
	}
}

func TestRouter_MessageRateLimit(t *testing.T) {
	deps := newTestRouterDeps()
	cfg := middleware.DefaultRateLimiterConfig()
	cfg.MessageRate = 0.001
	cfg.MessageBurst = 1
	deps.RateLimiter = middleware.NewRateLimiter(cfg)
	t.Cleanup(deps.RateLimiter.Stop)
	deps.ChatService = &mockChatService{
		sendMessageForFn: func(ctx context.Context, p *model.Principal, roomID string, senderType model.SenderType, message string) (*model.ChatMessage, error) {
			return &sampleRoom(roomID, 0).Messages[0], nil
		},
		listMessagesForFn: func(ctx context.Context, p *model.Principal, roomID string) ([]model.ChatMessage, error) {
			return []model.ChatMessage{}, nil
		},
	}
	router := NewRouter(deps)

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/rooms/room-1/messages", jsonBody(`{"message":"hi"}`))
		return serve(t, router, withSessionCookie(req, "co-token")).Code
	}

	if got := send(); got != http.StatusCreated {
		t.Fatalf("1st send status = %d, want %d", got, http.StatusCreated)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Fatalf("2nd send status = %d, want %d", got, http.StatusTooManyRequests)
	}

	// 送信制限は閲覧には影響しない
	req := withSessionCookie(httptest.NewRequest(http.MethodGet, "/api/chat/rooms/room-1/messages", nil), "co-token")
	if got := serve(t, router, req).Code; got != http.StatusOK {
		t.Errorf("list status = %d, want %d", got, http.StatusOK)
	}
}

func TestRouter_Health(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
	}{
		{"DB疎通あり", nil, http.StatusOK},
		{"DB疎通なし", errors.New("connection refused"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := newTestRouterDeps()
			t.Cleanup(deps.RateLimiter.Stop)
			deps.HealthChecker = pingFunc(func(context.Context) error { return tt.pingErr })
			router := NewRouter(deps)

			w := serve(t, router, httptest.NewRequest(http.MethodGet, "/health", nil))
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	t.Run("Gatherer未設定なら公開しない", func(t *testing.T) {
		deps := newTestRouterDeps()
		t.Cleanup(deps.RateLimiter.Stop)
		router := NewRouter(deps)

		w := serve(t, router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", w.Code, http.StatusNotFound)
		}
	})

	t.Run("Gatherer設定時はHTTPメトリクスを公開する", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		deps := newTestRouterDeps()
		t.Cleanup(deps.RateLimiter.Stop)
		deps.Metrics = metrics.NewCollector(reg)
		deps.Gatherer = reg
		router := NewRouter(deps)

		serve(t, router, httptest.NewRequest(http.MethodGet, "/health", nil))
		w := serve(t, router, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
		}
		if !strings.Contains(w.Body.String(), "sponsorlink_http_status_total") {
			t.Errorf("metrics body should contain http status counter:\n%s", w.Body.String())
		}
	})
}

func TestRouter_CORSPreflight(t *testing.T) {
	deps := newTestRouterDeps()
	t.Cleanup(deps.RateLimiter.Stop)
	router := NewRouter(deps)

	req := httptest.NewRequest(http.MethodOptions, "/api/chat/rooms", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := serve(t, router, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want http://localhost:3000", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}

func TestRouter_UnknownRoute(t *testing.T) {
	deps := newTestRouterDeps()
	t.Cleanup(deps.RateLimiter.Stop)
	router := NewRouter(deps)

	w := serve(t, router, httptest.NewRequest(http.MethodGet, "/api/auth/unknown", nil))
	// 存在しないルートには404か405が返ること
	if w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 404 or 405", w.Code)
	}
}
