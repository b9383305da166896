package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/roomkeeper/internal/metrics"
	"github.com/hitoshi/roomkeeper/internal/middleware"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	DeviceToken string
	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger

	// サービス
	PresenceService     PresenceServiceInterface
	RegistrationService RegistrationServiceInterface
	Notifier            TouchNotifier // nil可

	// 運用系
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer // nilの場合は/metricsを公開しない
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → DeviceAuth → RateLimit
//
// /health と /metrics は端末認証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	touchHandler := NewTouchHandler(deps.PresenceService, deps.Notifier)
	entriesHandler := NewEntriesHandler(deps.PresenceService, deps.Notifier)
	cardsHandler := NewCardsHandler(deps.RegistrationService)

	// --- 認証不要のルート ---

	r.Get("/health", newHealthHandler(deps.HealthChecker))

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 端末認証が必要なルート ---
	// ミドルウェアスタック: DeviceAuth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewDeviceAuthMiddleware(deps.DeviceToken))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// カードタッチ（タッチ専用レート制限を追加）
		r.With(deps.RateLimiter.TouchMiddleware()).Post("/api/touch", touchHandler.Touch)

		// 在室状況
		r.Route("/api/entries", func(r chi.Router) {
			r.Get("/", entriesHandler.ListEntries)
			r.Post("/exit-all", entriesHandler.ExitAll)
		})

		// クレデンシャル登録
		r.Route("/api/cards", func(r chi.Router) {
			r.Post("/student", cardsHandler.RegisterStudentCard)
			r.Post("/nfc", cardsHandler.RegisterNfcCard)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed",
					slog.String("error", err.Error()),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
