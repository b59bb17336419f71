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

	// Redis (optional shared L2 cache + distributed rate limit)
	Redis RedisConfig

	// External screening provider
	Screener ScreenerConfig

	// Recommendation engine
	Engine EngineConfig

	// Background jobs (cache warm-up, sweep)
	Scheduler SchedulerConfig

	// Variant catalog override (YAML). Empty = built-in catalog
	VariantsFile string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// ScreenerConfig holds screening provider configuration
type ScreenerConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerMinute int           // provider global budget
	Burst             int           // limiter burst
	Timeout           time.Duration // per-call timeout
}

// EngineConfig holds aggregation engine tuning
type EngineConfig struct {
	CacheTTL        time.Duration
	FailureCooldown time.Duration // ≈ 1x provider rate-limit window
	EvictAfter      int           // entries unused for EvictAfter*CacheTTL are purged
	RequestTimeout  time.Duration
	RetryAttempts   int
	RetryDelay      time.Duration
	RetryMaxDelay   time.Duration
}

// SchedulerConfig holds background job configuration
// Schedules use cron syntax with a leading seconds field
type SchedulerConfig struct {
	Enabled       bool
	WarmSchedule  string // refresh the default combination before CacheTTL runs out
	SweepSchedule string
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		Screener: ScreenerConfig{
			BaseURL:           getEnv("SCREENER_BASE_URL", "http://localhost:9300"),
			APIKey:            getEnv("SCREENER_API_KEY", ""),
			RequestsPerMinute: getEnvAsInt("SCREENER_RPM", 60),
			Burst:             getEnvAsInt("SCREENER_BURST", 4),
			Timeout:           getEnvAsDuration("SCREENER_TIMEOUT", "10s"),
		},

		Engine: EngineConfig{
			CacheTTL:        getEnvAsDuration("ENGINE_CACHE_TTL", "5m"),
			FailureCooldown: getEnvAsDuration("ENGINE_FAILURE_COOLDOWN", "60s"),
			EvictAfter:      getEnvAsInt("ENGINE_EVICT_AFTER", 4),
			RequestTimeout:  getEnvAsDuration("ENGINE_REQUEST_TIMEOUT", "30s"),
			RetryAttempts:   getEnvAsInt("ENGINE_RETRY_ATTEMPTS", 3),
			RetryDelay:      getEnvAsDuration("ENGINE_RETRY_DELAY", "500ms"),
			RetryMaxDelay:   getEnvAsDuration("ENGINE_RETRY_MAX_DELAY", "5s"),
		},

		Scheduler: SchedulerConfig{
			Enabled:       getEnvAsBool("SCHEDULER_ENABLED", false),
			WarmSchedule:  getEnv("SCHEDULER_WARM_SCHEDULE", "0 */4 * * * *"),
			SweepSchedule: getEnv("SCHEDULER_SWEEP_SCHEDULE", "0 */5 * * * *"),
		},

		VariantsFile: getEnv("VARIANTS_FILE", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Screener.BaseURL == "" {
		return fmt.Errorf("SCREENER_BASE_URL is required")
	}
	if c.Screener.RequestsPerMinute <= 0 {
		return fmt.Errorf("SCREENER_RPM must be > 0")
	}
	if c.Screener.Burst <= 0 {
		return fmt.Errorf("SCREENER_BURST must be > 0")
	}
	if c.Screener.Timeout <= 0 {
		return fmt.Errorf("SCREENER_TIMEOUT must be > 0")
	}

	if c.Engine.CacheTTL <= 0 {
		return fmt.Errorf("ENGINE_CACHE_TTL must be > 0")
	}
	if c.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("ENGINE_REQUEST_TIMEOUT must be > 0")
	}
	if c.Engine.RetryAttempts < 1 {
		return fmt.Errorf("ENGINE_RETRY_ATTEMPTS must be >= 1")
	}
	if c.Engine.EvictAfter < 1 {
		return fmt.Errorf("ENGINE_EVICT_AFTER must be >= 1")
	}

	if c.Scheduler.Enabled && (c.Scheduler.WarmSchedule == "" || c.Scheduler.SweepSchedule == "") {
		return fmt.Errorf("SCHEDULER_WARM_SCHEDULE and SCHEDULER_SWEEP_SCHEDULE are required when SCHEDULER_ENABLED")
	}

	return nil
}

// RateWindow returns the provider rate-limit window
func (s ScreenerConfig) RateWindow() time.Duration {
	return time.Minute
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
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
