package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/korvad/korvadweb/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger       *slog.Logger
	SessionGuard *middleware.SessionGuard
	CSRFConfig   middleware.CSRFConfig
	RateLimiter  *middleware.RateLimiter
	Metrics      MetricsMiddleware

	// ハンドラー
	Pages  *PageHandler
	Blog   *BlogHandler
	Admin  *AdminHandler
	Feed   *FeedHandler
	Health *HealthHandler

	// /metrics と /static/* のハンドラー
	MetricsHandler http.Handler
	StaticHandler  http.Handler

	// TrustProxyHeaders はX-Forwarded-For等からクライアントIPを決めるかどうか。
	// 信頼できるリバースプロキシ配下でのみtrueにする。
	TrustProxyHeaders bool
}

// MetricsMiddleware はリクエストメトリクスを記録するミドルウェアを提供する。
type MetricsMiddleware interface {
	Middleware() func(next http.Handler) http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	[RealIP] → GetHead → StripSlashes → Logging → Metrics → Recovery → SecurityHeaders
//	  ページ: → SessionGuard → CSRF
//	  管理画面: → RequireAdmin → RateLimit(Admin)
//
// RealIPはTrustProxyHeadersがtrueの場合のみ有効になる。
// /health, /metrics, /static/* はセッションを発行しない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	if deps.TrustProxyHeaders {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.GetHead)
	r.Use(chimiddleware.StripSlashes)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteText(w, http.StatusNotFound, "Página no encontrada")
	})

	// --- セッション不要のルート ---
	r.Get("/health", deps.Health.Health)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.StaticHandler != nil {
		r.Handle("/static/*", deps.StaticHandler)
	}
	r.Get("/blog/feed.xml", deps.Feed.RSS)
	r.Get("/sitemap.xml", deps.Feed.Sitemap)

	// --- セッションを伴うルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.SessionGuard.Middleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Get("/", deps.Pages.Index)
		r.Get("/contacto", deps.Pages.Contacto)
		r.Get("/precios", deps.Pages.Precios)
		r.Get("/servicios/{planName}", deps.Pages.Servicio)

		r.Get("/blog", deps.Blog.List)
		r.Get("/blog/{id}", deps.Blog.Detail)

		r.Get(adminLoginPath, deps.Admin.LoginForm)
		r.With(deps.RateLimiter.LoginMiddleware()).Post("/admin/login", deps.Admin.Login)

		// 管理画面（認証必須）
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAdmin(adminLoginPath))
			r.Use(deps.RateLimiter.AdminMiddleware())

			r.Get("/admin/logout", deps.Admin.Logout)
			r.Get("/admin/panel", deps.Admin.Panel)
			r.Post("/admin/new-post", deps.Admin.CreatePost)
			r.Get("/admin/edit/{id}", deps.Admin.EditForm)
			r.Post("/admin/edit/{id}", deps.Admin.UpdatePost)
			r.Post("/admin/delete/{id}", deps.Admin.DeletePost)
		})
	})

	return r
}
