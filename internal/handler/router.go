package handler

import (
	"log/slog"
	"net/http"
	"net/netip"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/launchboard/internal/metrics"
	"github.com/hitoshi/launchboard/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存（Loggerがnilの場合はslog.Default()）
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler

	// 転送ヘッダーを信用するプロキシ。空の場合はRemoteAddrのみでクライアントを識別する
	TrustedProxies []netip.Prefix

	// ヘルスチェック対象（名前 → 疎通確認）
	HealthCheckers map[string]HealthChecker

	// 認証
	AuthService  AuthServiceInterface
	StateManager StateManager
	AuthConfig   AuthHandlerConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	TrustedProxy → Recovery → Logging → SecurityHeaders → CORS
//
// ログイン系ルートにはクライアントIPごとのレート制限、/api/auth/me にはBearer認証を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewTrustedProxyMiddleware(deps.TrustedProxies))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.StateManager, deps.AuthConfig)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthCheckers))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証ルート ---
	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.LoginMiddleware())
			}

			r.Get("/google", authHandler.GoogleLogin)
			r.Get("/google/callback", authHandler.GoogleCallback)
			r.Post("/metamask", authHandler.WalletLogin)
			r.Get("/metamask/nonce", authHandler.WalletNonce)
		})

		r.With(middleware.NewBearerAuthMiddleware(deps.AuthService)).Get("/me", authHandler.Me)
		r.Post("/logout", authHandler.Logout)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusNotFound, middleware.ErrorResponseBody{Error: "Not found", Code: "NOT_FOUND"})
	})

	return r
}
