package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/gfrate/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	StatusMetrics     middleware.StatusMetrics

	// 商品
	ProductService ProductServiceInterface

	// 投票
	VoteService VoteServiceInterface

	// 運用オペレーション
	Recomputer  RecomputeRunner
	Snapshotter SnapshotRunner
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging → Identity → RateLimit(General)
//
// ヘルスチェック（/health）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusMetrics))

	productHandler := NewProductHandler(deps.ProductService)
	voteHandler := NewVoteHandler(deps.VoteService)
	adminHandler := NewAdminHandler(deps.Recomputer, deps.Snapshotter)

	// --- レート制限の外のルート ---

	// ヘルスチェック（Dockerのhealthcheckサブコマンドから叩かれる）
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// --- APIルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 商品管理
		r.Route("/api/products", func(r chi.Router) {
			r.Post("/", productHandler.CreateProduct)
			r.Get("/", productHandler.ListProducts)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", productHandler.GetProduct)
				r.Get("/snapshots", productHandler.ListSnapshots)

				// POST /api/products/{id}/votes - 投票投稿（専用レート制限を追加）
				r.With(deps.RateLimiter.VoteCastMiddleware()).Post("/votes", voteHandler.CastVote)
			})
		})

		// 投票の引き継ぎと履歴
		r.Post("/api/votes/migrate", voteHandler.MigrateVotes)
		r.Get("/api/users/me/votes", voteHandler.ListMyVotes)

		// 運用オペレーション
		r.Route("/api/admin", func(r chi.Router) {
			r.Post("/recompute", adminHandler.RecomputeAll)
			r.Post("/snapshots", adminHandler.CaptureSnapshots)
		})
	})

	return r
}
