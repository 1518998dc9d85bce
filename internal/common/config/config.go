package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/uma-arai/sbcntr-bungalow/internal/common/database"
)

type Config struct {
	DB  database.Config
	SFN struct {
		TaskToken string
	}
	EnableTracing bool

	// UseMemoryStore が有効な場合はDBに接続せずインメモリのストアを使います
	UseMemoryStore bool
	Server         ServerConfig
	Auth           AuthConfig
	Confirmation   ConfirmationConfig
	RabbitMQ       RabbitMQConfig
	Redis          RedisConfig
	// SettingsPath は料金規定の設定ファイルのパスです
	SettingsPath string
	// SweepSchedule は期限切れ予約の掃除を行うcronの式です
	SweepSchedule string
}

type ServerConfig struct {
	Port            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

type AuthConfig struct {
	// JWTSecret はオペレーター用トークンの検証に使うHS256の鍵です
	JWTSecret string
	// InternalAPIKey は内部エンドポイント(掃除の手動実行)用のキーです
	InternalAPIKey string
}

type ConfirmationConfig struct {
	PublicBaseURL string
	TTL           time.Duration
	// RateLimitPerMinute は確認リンクへの1分あたりのリクエスト上限です(IP単位)
	RateLimitPerMinute int
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoadConfig は設定を読み込みます
func LoadConfig(taskToken string) (*Config, error) {
	cfg := &Config{
		DB: database.Config{
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getEnvAsIntOrDefault("DB_PORT", 5432),
			UserName: getEnvOrDefault("DB_USERNAME", "sbcntrapp"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			DBName:   getEnvOrDefault("DB_NAME", "bungalow"),
			SSLMode:  os.Getenv("DB_SSL_MODE"),
		},
		SFN: struct {
			TaskToken string
		}{
			TaskToken: taskToken,
		},
		EnableTracing:  false,
		UseMemoryStore: getEnvAsBoolOrDefault("USE_MEMORY_STORE", false),
		Server: ServerConfig{
			Port:            getEnvOrDefault("PORT", "8080"),
			AllowedOrigins:  splitList(os.Getenv("ALLOWED_ORIGINS")),
			ShutdownTimeout: getEnvAsDurationOrDefault("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			InternalAPIKey: os.Getenv("INTERNAL_API_KEY"),
		},
		Confirmation: ConfirmationConfig{
			PublicBaseURL:      strings.TrimRight(getEnvOrDefault("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			TTL:                getEnvAsDurationOrDefault("CONFIRMATION_TTL", 24*time.Hour),
			RateLimitPerMinute: getEnvAsIntOrDefault("CONFIRMATION_RATE_LIMIT_PER_MINUTE", 30),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      os.Getenv("RABBITMQ_URL"),
			Exchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "bungalow.reservations"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvAsIntOrDefault("REDIS_DB", 0),
		},
		SettingsPath:  getEnvOrDefault("SETTINGS_PATH", "settings.yaml"),
		SweepSchedule: getEnvOrDefault("SWEEP_SCHEDULE", "@every 1m"),
	}

	// 環境変数[SBCNTR_ENABLE_TRACING]を見てトレースを有効にする。対応しているTracingはAWS_XRAYのみ。
	// 環境変数[AWS_XRAY_SDK_DISABLED]がtrueの場合は必ずトレースを無効にする。
	enableKey := os.Getenv("SBCNTR_ENABLE_TRACING")
	if !sdkDisabled() && (strings.ToLower(enableKey) == "true" || enableKey == "1") {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "FALSE")
		cfg.EnableTracing = true
	} else {
		os.Setenv("AWS_XRAY_SDK_DISABLED", "TRUE")
		cfg.EnableTracing = false
	}

	return cfg, nil
}

// ConfirmationURL は確認コードから顧客向けの確認リンクを作ります
func (c *Config) ConfirmationURL(code string) string {
	return c.Confirmation.PublicBaseURL + "/confirm/" + code
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	log.Printf("Environment variable %s is not set, using default value", key)
	return defaultValue
}

func getEnvAsIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Environment variable %s has an invalid duration %q, using default value", key, value)
	}
	return defaultValue
}

func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// Check if SDK is disabled
func sdkDisabled() bool {
	disableKey := os.Getenv("AWS_XRAY_SDK_DISABLED")
	return strings.ToLower(disableKey) == "true"
}
