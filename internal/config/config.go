// Package config は環境変数からのアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Device auth
	DeviceToken string

	// Discord
	DiscordBotToken   string
	DiscordWebhookURL string

	// Cache
	RedisAddr   string
	UserInfoTTL time.Duration

	// Sweep
	SweepAt  string
	Timezone string

	// Rate Limit
	RateLimitTouch   int
	RateLimitGeneral int

	// Server
	ServerPort string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
// DiscordBotToken・DiscordWebhookURL・RedisAddrは省略可能で、
// 未設定の場合は対応する機能（表示名取得・通知・Redisキャッシュ）が無効になる。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.DeviceToken = os.Getenv("DEVICE_TOKEN")
	if cfg.DeviceToken == "" {
		missing = append(missing, "DEVICE_TOKEN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DiscordBotToken = os.Getenv("DISCORD_BOT_TOKEN")
	cfg.DiscordWebhookURL = os.Getenv("DISCORD_WEBHOOK_URL")
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")
	cfg.UserInfoTTL = getEnvDuration("USER_INFO_TTL", 12*time.Hour)
	cfg.SweepAt = getEnvString("SWEEP_AT", "23:59")
	cfg.Timezone = getEnvString("TIMEZONE", "Asia/Tokyo")
	cfg.RateLimitTouch = getEnvInt("RATE_LIMIT_TOUCH", 60)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")

	// 実行時まで気づきにくい設定値はここで検証する
	if _, err := time.Parse("15:04", cfg.SweepAt); err != nil {
		return nil, fmt.Errorf("SWEEP_AT must be in HH:MM format: %q", cfg.SweepAt)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %q: %w", cfg.Timezone, err)
	}

	return cfg, nil
}

// Location はTimezoneをtime.Locationとして返す。
// Loadで検証済みのため失敗しない。
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
