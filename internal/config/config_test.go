package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

// clearEnv は設定関連の環境変数をすべて未設定にする。
func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DATABASE_URL", "DEVICE_TOKEN",
		"DISCORD_BOT_TOKEN", "DISCORD_WEBHOOK_URL",
		"REDIS_ADDR", "USER_INFO_TTL",
		"SWEEP_AT", "TIMEZONE",
		"RATE_LIMIT_TOUCH", "RATE_LIMIT_GENERAL",
		"SERVER_PORT",
	}
	for _, key := range keys {
		if v, ok := os.LookupEnv(key); ok {
			t.Setenv(key, v) // 復元用に登録してから消す
		}
		os.Unsetenv(key)
	}
}

// TestLoad_Defaults は必須変数のみでデフォルト値が適用されることを検証する。
func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/roomkeeper")
	t.Setenv("DEVICE_TOKEN", "secret-token")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "8080")
	}
	if cfg.SweepAt != "23:59" {
		t.Errorf("SweepAt = %q, want %q", cfg.SweepAt, "23:59")
	}
	if cfg.Timezone != "Asia/Tokyo" {
		t.Errorf("Timezone = %q, want %q", cfg.Timezone, "Asia/Tokyo")
	}
	if cfg.UserInfoTTL != 12*time.Hour {
		t.Errorf("UserInfoTTL = %v, want %v", cfg.UserInfoTTL, 12*time.Hour)
	}
	if cfg.RateLimitTouch != 60 {
		t.Errorf("RateLimitTouch = %d, want 60", cfg.RateLimitTouch)
	}
	if cfg.RateLimitGeneral != 120 {
		t.Errorf("RateLimitGeneral = %d, want 120", cfg.RateLimitGeneral)
	}
	if cfg.DiscordBotToken != "" {
		t.Errorf("DiscordBotToken = %q, want empty", cfg.DiscordBotToken)
	}
}

// TestLoad_MissingRequired は必須変数の欠落がエラーになることを検証する。
func TestLoad_MissingRequired(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/roomkeeper")
	// DEVICE_TOKEN 未設定

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for missing DEVICE_TOKEN, got nil")
	}
	if !strings.Contains(err.Error(), "DEVICE_TOKEN") {
		t.Errorf("error = %v, want DEVICE_TOKENを含む", err)
	}
}

// TestLoad_Overrides は環境変数による上書きを検証する。
func TestLoad_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/roomkeeper")
	t.Setenv("DEVICE_TOKEN", "secret-token")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("SWEEP_AT", "22:00")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("USER_INFO_TTL", "1h")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ServerPort != "9000" {
		t.Errorf("ServerPort = %q, want %q", cfg.ServerPort, "9000")
	}
	if cfg.SweepAt != "22:00" {
		t.Errorf("SweepAt = %q, want %q", cfg.SweepAt, "22:00")
	}
	if cfg.UserInfoTTL != time.Hour {
		t.Errorf("UserInfoTTL = %v, want %v", cfg.UserInfoTTL, time.Hour)
	}
	if cfg.RedisAddr != "localhost:6379" {
		t.Errorf("RedisAddr = %q, want %q", cfg.RedisAddr, "localhost:6379")
	}
}

// TestLoad_InvalidSweepAt は不正なSWEEP_ATがエラーになることを検証する。
func TestLoad_InvalidSweepAt(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/roomkeeper")
	t.Setenv("DEVICE_TOKEN", "secret-token")
	t.Setenv("SWEEP_AT", "not-a-time")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid SWEEP_AT, got nil")
	}
}

// TestLoad_InvalidTimezone は不正なTIMEZONEがエラーになることを検証する。
func TestLoad_InvalidTimezone(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://localhost/roomkeeper")
	t.Setenv("DEVICE_TOKEN", "secret-token")
	t.Setenv("TIMEZONE", "Mars/Olympus")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for invalid TIMEZONE, got nil")
	}
}

// TestConfig_Location はLocationが設定されたタイムゾーンを返すことを検証する。
func TestConfig_Location(t *testing.T) {
	cfg := &Config{Timezone: "Asia/Tokyo"}
	loc := cfg.Location()
	if loc.String() != "Asia/Tokyo" {
		t.Errorf("Location = %v, want Asia/Tokyo", loc)
	}
}
