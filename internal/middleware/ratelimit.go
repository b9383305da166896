package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	TouchRate       rate.Limit    // カードタッチのレート（req/sec）。60/60
	TouchBurst      int           // カードタッチのバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/端末、カードタッチ 60 req/min/端末。
// タッチ系の上限はカードリーダーの物理的な読み取り速度より十分高い。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(120.0 / 60.0), // 2 req/sec
		GeneralBurst:    120,
		TouchRate:       rate.Limit(60.0 / 60.0), // 1 req/sec
		TouchBurst:      60,
		CleanupInterval: 5 * time.Minute,
	}
}

// deviceLimiter は端末ごとのレートリミッターとアクセス時刻を保持する。
type deviceLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter は端末ごとのレート制限を管理する。
// API全般のレート制限とカードタッチのレート制限の2種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	generalMu       sync.RWMutex
	generalLimiters map[string]*deviceLimiter

	touchMu       sync.RWMutex
	touchLimiters map[string]*deviceLimiter

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:          config,
		generalLimiters: make(map[string]*deviceLimiter),
		touchLimiters:   make(map[string]*deviceLimiter),
		stopCh:          make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストに端末IDが含まれている必要がある（DeviceAuthMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID, err := DeviceIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateLimiter(&rl.generalMu, rl.generalLimiters, deviceID, rl.config.GeneralRate, rl.config.GeneralBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.GeneralRate)
				slog.Warn("rate limit exceeded",
					slog.String("device_id", deviceID),
					slog.String("limit_type", "general"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// TouchMiddleware はカードタッチ専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) TouchMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID, err := DeviceIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			limiter := rl.getOrCreateLimiter(&rl.touchMu, rl.touchLimiters, deviceID, rl.config.TouchRate, rl.config.TouchBurst)

			if !limiter.Allow() {
				writeRateLimitResponse(w, rl.config.TouchRate)
				slog.Warn("rate limit exceeded",
					slog.String("device_id", deviceID),
					slog.String("limit_type", "touch"),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テスト用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	rl.generalMu.RLock()
	defer rl.generalMu.RUnlock()
	return len(rl.generalLimiters)
}

// TouchLimiterCount は現在管理されているカードタッチリミッターのエントリ数を返す。
// テスト用。
func (rl *RateLimiter) TouchLimiterCount() int {
	rl.touchMu.RLock()
	defer rl.touchMu.RUnlock()
	return len(rl.touchLimiters)
}

// getOrCreateLimiter は端末のリミッターを取得または作成する。
func (rl *RateLimiter) getOrCreateLimiter(mu *sync.RWMutex, limiters map[string]*deviceLimiter, deviceID string, r rate.Limit, burst int) *rate.Limiter {
	mu.RLock()
	dl, exists := limiters[deviceID]
	mu.RUnlock()

	if exists {
		mu.Lock()
		dl.lastAccess = time.Now()
		mu.Unlock()
		return dl.limiter
	}

	mu.Lock()
	defer mu.Unlock()

	// ダブルチェック
	if dl, exists := limiters[deviceID]; exists {
		dl.lastAccess = time.Now()
		return dl.limiter
	}

	limiter := rate.NewLimiter(r, burst)
	limiters[deviceID] = &deviceLimiter{
		limiter:    limiter,
		lastAccess: time.Now(),
	}

	return limiter
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup() {
	ttl := rl.config.CleanupInterval * 2

	now := time.Now()

	rl.generalMu.Lock()
	for deviceID, dl := range rl.generalLimiters {
		if now.Sub(dl.lastAccess) > ttl {
			delete(rl.generalLimiters, deviceID)
		}
	}
	rl.generalMu.Unlock()

	rl.touchMu.Lock()
	for deviceID, dl := range rl.touchLimiters {
		if now.Sub(dl.lastAccess) > ttl {
			delete(rl.touchLimiters, deviceID)
		}
	}
	rl.touchMu.Unlock()
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	// Retry-Afterの算出: 1トークンが補充されるまでの秒数
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"code":     "rate_limit_exceeded",
		"message":  "Too many requests. Please try again later.",
		"category": "system",
		"action":   "Please wait and retry after the specified time.",
	})
}
