package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestDeviceAuthMiddleware_ValidToken はトークン一致時に端末IDが注入されることを検証する。
func TestDeviceAuthMiddleware_ValidToken(t *testing.T) {
	var gotDeviceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deviceID, err := DeviceIDFromContext(r.Context())
		if err != nil {
			t.Errorf("DeviceIDFromContext returned error: %v", err)
		}
		gotDeviceID = deviceID
		w.WriteHeader(http.StatusOK)
	})

	handler := NewDeviceAuthMiddleware("secret-token")(next)

	req := httptest.NewRequest(http.MethodPost, "/api/touch", nil)
	req.Header.Set("X-Device-Token", "secret-token")
	req.Header.Set("X-Device-Id", "reader-1")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotDeviceID != "reader-1" {
		t.Errorf("deviceID = %q, want %q", gotDeviceID, "reader-1")
	}
}

// TestDeviceAuthMiddleware_DefaultDeviceID は端末ID省略時のデフォルト値を検証する。
func TestDeviceAuthMiddleware_DefaultDeviceID(t *testing.T) {
	var gotDeviceID string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotDeviceID, _ = DeviceIDFromContext(r.Context())
	})

	handler := NewDeviceAuthMiddleware("secret-token")(next)

	req := httptest.NewRequest(http.MethodPost, "/api/touch", nil)
	req.Header.Set("X-Device-Token", "secret-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if gotDeviceID != "default" {
		t.Errorf("deviceID = %q, want %q", gotDeviceID, "default")
	}
}

// TestDeviceAuthMiddleware_InvalidToken はトークン不一致が401になることを検証する。
func TestDeviceAuthMiddleware_InvalidToken(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("next handler should not be called")
	})

	handler := NewDeviceAuthMiddleware("secret-token")(next)

	tests := []struct {
		name  string
		token string
	}{
		{"トークンなし", ""},
		{"トークン不一致", "wrong-token"},
		{"部分一致", "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/touch", nil)
			if tt.token != "" {
				req.Header.Set("X-Device-Token", tt.token)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

// TestDeviceIDFromContext_Missing はコンテキスト未設定時のエラーを検証する。
func TestDeviceIDFromContext_Missing(t *testing.T) {
	_, err := DeviceIDFromContext(context.Background())
	if err == nil {
		t.Fatal("expected error for missing device ID, got nil")
	}
}
