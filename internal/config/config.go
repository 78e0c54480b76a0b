package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Recompute
	RecomputeMaxConcurrent int

	// Snapshot
	SnapshotHourUTC int

	// Rate Limit
	RateLimitGeneral  int
	RateLimitVoteCast int

	// Server
	ServerPort  string
	MetricsPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.RecomputeMaxConcurrent = getEnvInt("RECOMPUTE_MAX_CONCURRENT", 10)
	// スナップショットは減衰再集計（デフォルト0時）との競合を避けて2時に実行する
	cfg.SnapshotHourUTC = getEnvInt("SNAPSHOT_HOUR_UTC", 2)
	if cfg.SnapshotHourUTC < 0 || cfg.SnapshotHourUTC > 23 {
		return nil, fmt.Errorf("SNAPSHOT_HOUR_UTC must be in [0, 23], got %d", cfg.SnapshotHourUTC)
	}
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitVoteCast = getEnvInt("RATE_LIMIT_VOTE_CAST", 20)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.MetricsPort = getEnvString("METRICS_PORT", "9090")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
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

