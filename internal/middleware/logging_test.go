package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestLoggingMiddleware はリクエストログの構造化出力を検証する。
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/cards/student", nil)
	req = req.WithContext(ContextWithDeviceID(req.Context(), "reader-1"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log record: %v", err)
	}
	if record["method"] != "POST" {
		t.Errorf("method = %v, want POST", record["method"])
	}
	if record["path"] != "/api/cards/student" {
		t.Errorf("path = %v, want /api/cards/student", record["path"])
	}
	if record["status"] != float64(http.StatusCreated) {
		t.Errorf("status = %v, want %d", record["status"], http.StatusCreated)
	}
	if record["device_id"] != "reader-1" {
		t.Errorf("device_id = %v, want reader-1", record["device_id"])
	}
	if _, ok := record["duration_ms"]; !ok {
		t.Error("duration_ms がログに含まれない")
	}
}

// TestLoggingMiddleware_ErrorLevel は5xxレスポンスがERRORレベルで出ることを検証する。
func TestLoggingMiddleware_ErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := NewLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("failed to decode log record: %v", err)
	}
	if record["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", record["level"])
	}
}
