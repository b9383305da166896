// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
)

const (
	// deviceTokenHeader はカードリーダー端末の共有トークンを運ぶヘッダー名。
	deviceTokenHeader = "X-Device-Token"
	// deviceIDHeader は端末識別子を運ぶヘッダー名。省略可能。
	deviceIDHeader = "X-Device-Id"
	// defaultDeviceID は端末識別子が省略された場合の識別子。
	defaultDeviceID = "default"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// deviceIDContextKey はリクエストコンテキストに端末IDを格納するためのキー。
var deviceIDContextKey = contextKey("device_id")

// NewDeviceAuthMiddleware は共有トークンによる端末認証ミドルウェアを返す。
// トークンの比較は一定時間で行う。認証済みの端末IDを
// リクエストコンテキストに注入する。
// トークン不一致のリクエストには401 Unauthorizedを返す。
func NewDeviceAuthMiddleware(deviceToken string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(deviceTokenHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(deviceToken)) != 1 {
				slog.Warn("端末認証に失敗しました",
					slog.String("path", r.URL.Path),
					slog.String("remote_addr", r.RemoteAddr),
				)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			deviceID := r.Header.Get(deviceIDHeader)
			if deviceID == "" {
				deviceID = defaultDeviceID
			}

			ctx := context.WithValue(r.Context(), deviceIDContextKey, deviceID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// DeviceIDFromContext はリクエストコンテキストから端末IDを取得する。
// 端末認証ミドルウェアを通過したリクエストでのみ有効。
func DeviceIDFromContext(ctx context.Context) (string, error) {
	deviceID, ok := ctx.Value(deviceIDContextKey).(string)
	if !ok || deviceID == "" {
		return "", fmt.Errorf("device ID not found in context")
	}
	return deviceID, nil
}

// ContextWithDeviceID はコンテキストに端末IDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithDeviceID(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceIDContextKey, deviceID)
}
