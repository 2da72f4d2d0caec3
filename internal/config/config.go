package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBWaitTimeout  time.Duration
	DBWaitInterval time.Duration

	// Media
	MediaRoot    string
	MediaURL     string
	ImageMaxSize int64

	// Orphan image sweep
	OrphanImageGrace    time.Duration
	OrphanSweepInterval time.Duration

	// Auth
	BcryptCost int

	// Rate Limit
	RateLimitGeneral    int
	RateLimitCredential int

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Worker（空の場合はworkerのメトリクス配信を無効にする）
	WorkerMetricsPort string

	// CORS
	CORSAllowedOrigin string

	// Superuser（createsuperuserコマンド用）
	SuperuserEmail    string
	SuperuserPassword string
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
	cfg.DBWaitTimeout = getEnvDuration("DB_WAIT_TIMEOUT", 60*time.Second)
	cfg.DBWaitInterval = getEnvDuration("DB_WAIT_INTERVAL", time.Second)
	cfg.MediaRoot = getEnvString("MEDIA_ROOT", "./media")
	cfg.MediaURL = normalizeMediaURL(getEnvString("MEDIA_URL", "/media/"))
	cfg.ImageMaxSize = getEnvInt64("IMAGE_MAX_SIZE", 10485760)
	cfg.OrphanImageGrace = getEnvDuration("ORPHAN_IMAGE_GRACE", 24*time.Hour)
	cfg.OrphanSweepInterval = getEnvDuration("ORPHAN_SWEEP_INTERVAL", 6*time.Hour)
	cfg.BcryptCost = getEnvBcryptCost("BCRYPT_COST", bcrypt.DefaultCost)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitCredential = getEnvInt("RATE_LIMIT_CREDENTIAL", 20)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.BaseURL = strings.TrimRight(getEnvString("BASE_URL", "http://localhost:"+cfg.ServerPort), "/")
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "9091")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")
	cfg.SuperuserEmail = os.Getenv("SUPERUSER_EMAIL")
	cfg.SuperuserPassword = os.Getenv("SUPERUSER_PASSWORD")

	return cfg, nil
}

// normalizeMediaURL はMEDIA_URLを "/" で始まり "/" で終わる形に揃える。
func normalizeMediaURL(u string) string {
	if !strings.HasPrefix(u, "/") && !strings.Contains(u, "://") {
		u = "/" + u
	}
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
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

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
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

// getEnvBcryptCost はbcryptのコストを読み込む。範囲外の値はデフォルトに戻す。
func getEnvBcryptCost(key string, defaultVal int) int {
	cost := getEnvInt(key, defaultVal)
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return defaultVal
	}
	return cost
}
