package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External services
	Deep     DeepConfig
	NewsFeed NewsFeedConfig

	// Strategy
	StrategyConfigPath string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DeepConfig holds the deep-analysis service configuration
// 옵션 서비스: 비어 있으면 null 구현이 선택됨 (fail-open)
type DeepConfig struct {
	BaseURL   string
	APIKey    string
	RatePerS  int // 초당 허용 요청 수
	BreakerOn bool
}

// NewsFeedConfig holds the HTML news feed adapter configuration
type NewsFeedConfig struct {
	BaseURL  string
	RatePerS int
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8091"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 16),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Deep-analysis service (optional)
		Deep: DeepConfig{
			BaseURL:   getEnv("DEEP_BASE_URL", ""),
			APIKey:    getEnv("DEEP_API_KEY", ""),
			RatePerS:  getEnvAsInt("DEEP_RATE_PER_S", 2),
			BreakerOn: getEnvAsBool("DEEP_BREAKER_ENABLED", true),
		},

		// News feed adapter
		NewsFeed: NewsFeedConfig{
			BaseURL:  getEnv("NEWSFEED_BASE_URL", ""),
			RatePerS: getEnvAsInt("NEWSFEED_RATE_PER_S", 4),
		},

		// Strategy
		StrategyConfigPath: getEnv("STRATEGY_CONFIG", "config/strategy/argus_core_v1.yaml"),

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		// Monitoring
		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Deep.BaseURL != "" && c.Deep.RatePerS < 1 {
		return fmt.Errorf("DEEP_RATE_PER_S must be >= 1 when DEEP_BASE_URL is set")
	}

	if c.NewsFeed.BaseURL != "" && c.NewsFeed.RatePerS < 1 {
		return fmt.Errorf("NEWSFEED_RATE_PER_S must be >= 1 when NEWSFEED_BASE_URL is set")
	}

	return nil
}

// DeepEnabled reports whether the deep-analysis service is configured
func (c *Config) DeepEnabled() bool {
	return c.Deep.BaseURL != ""
}

// NewsFeedEnabled reports whether the news feed adapter is configured
func (c *Config) NewsFeedEnabled() bool {
	return c.NewsFeed.BaseURL != ""
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
