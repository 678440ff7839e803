package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sponsorlink/internal/metrics"
	"github.com/hitoshi/sponsorlink/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver           middleware.PrincipalResolver
	CORSAllowedOrigins []string
	RateLimiter        *middleware.RateLimiter
	HealthChecker      HealthChecker
	Logger             *slog.Logger

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 協賛申請
	ProposalService ProposalServiceInterface

	// チャット
	ChatService ChatServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → Metrics → CORS → Session → RateLimit(General)
//
// 認証ルート（/api/auth/*）は主体なしでも呼び出せる。それ以外の/api配下はRequireAuthを通す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(metrics.NewHTTPMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	proposalHandler := NewProposalHandler(deps.ProposalService)
	chatHandler := NewChatHandler(deps.ChatService)
	dashboardHandler := NewDashboardHandler(deps.ProposalService, deps.ChatService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigins))
		r.Use(middleware.NewSessionMiddleware(deps.Resolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// --- 認証不要のルート ---
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/session", authHandler.Session)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth())

			// 協賛申請
			r.Route("/companies/{companyId}/proposals", func(r chi.Router) {
				r.Get("/", proposalHandler.ListByCompany)
				r.Post("/", proposalHandler.Submit)
			})
			r.Route("/organizations/{organizationId}", func(r chi.Router) {
				r.Get("/proposals", proposalHandler.ListByOrganization)
				r.Get("/dashboard", dashboardHandler.Organization)
			})
			r.Get("/proposals/{id}", proposalHandler.Get)

			// チャット
			r.Route("/chat", func(r chi.Router) {
				r.Get("/rooms", chatHandler.ListRooms)
				r.Post("/rooms", chatHandler.OpenRoom)

				r.Route("/rooms/{id}", func(r chi.Router) {
					r.Get("/", chatHandler.GetRoom)
					r.Get("/messages", chatHandler.ListMessages)
					// POST /api/chat/rooms/{id}/messages - 送信専用レート制限を追加
					r.With(deps.RateLimiter.MessageMiddleware()).Post("/messages", chatHandler.SendMessage)
				})

				r.Post("/messages/{id}/read", chatHandler.MarkRead)
			})
		})
	})

	return r
}
