package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/techwave/storefront/internal/metrics"
	"github.com/techwave/storefront/internal/middleware"
	"github.com/techwave/storefront/internal/payment"
)

// HealthChecker はヘルスチェックで疎通確認する依存のインターフェース。
// デモモード（DBなし）ではnilでよい。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	VisitorCookie     middleware.VisitorCookieConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 状態エンジン
	Engines EngineSource

	// ドメイン依存
	Catalog CatalogInterface
	Payment payment.Provider
	Blog    BlogReaderInterface // nilの場合ブログエンドポイントは無効

	// 観測
	Metrics  *metrics.Collector    // nil可
	Gatherer prometheus.Gatherer   // nilの場合/metricsを公開しない
	Health   HealthChecker         // nil可（デモモード）
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → Recovery → Visitor → Logging → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 具象型のnilポインタをインターフェースに入れると非nil扱いになるため、
	// メトリクス未設定時は各インターフェース変数をnilのままにする。
	var (
		mutationRecorder MutationRecorder
		checkoutRecorder CheckoutRecorder
		statusRecorder   middleware.StatusRecorder
	)
	if deps.Metrics != nil {
		mutationRecorder = deps.Metrics
		checkoutRecorder = deps.Metrics
		statusRecorder = deps.Metrics
	}

	authHandler := NewAuthHandler(deps.Engines)
	cartHandler := NewCartHandler(deps.Engines, deps.Catalog, mutationRecorder)
	courseHandler := NewCourseHandler(deps.Catalog)
	checkoutHandler := NewCheckoutHandler(deps.Engines, deps.Payment, checkoutRecorder)
	blogHandler := NewBlogHandler(deps.Blog)

	// --- 運用ルート（ミドルウェアチェーンの外）---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health.PingContext(req.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewRecoveryMiddleware())
		r.Use(middleware.NewVisitorMiddleware(deps.VisitorCookie))
		if deps.Logger != nil {
			r.Use(middleware.NewLoggingMiddleware(deps.Logger, statusRecorder))
		}
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// セッション管理
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/provider", authHandler.LoginProvider)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
		})

		// コースカタログ
		r.Route("/api/courses", func(r chi.Router) {
			r.Get("/", courseHandler.ListCourses)
			r.Get("/{id}", courseHandler.GetCourse)
		})

		// カート管理
		r.Route("/api/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)

			r.Route("/items", func(r chi.Router) {
				r.Post("/", cartHandler.AddItem)
				r.Patch("/{id}", cartHandler.UpdateQuantity)
				r.Delete("/{id}", cartHandler.RemoveItem)
			})
		})

		// チェックアウト（専用レート制限を追加）
		r.With(deps.RateLimiter.CheckoutMiddleware()).Post("/api/checkout", checkoutHandler.Checkout)

		// 受講記録
		r.Route("/api/enrollments", func(r chi.Router) {
			r.Get("/", checkoutHandler.ListEnrollments)
			r.Patch("/{id}/progress", checkoutHandler.UpdateProgress)
		})

		// ブログ
		r.Get("/api/blog", blogHandler.ListPosts)
	})

	return r
}
