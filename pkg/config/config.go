package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Cron     CronConfig
	Cache    CacheConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string
}

type DatabaseConfig struct {
	URL string
}

type JWTConfig struct {
	Secret string
}

type CronConfig struct {
	// Secret authenticates external schedulers calling the HTTP trigger.
	Secret             string
	PlanExpirySchedule string
	Disabled           bool
}

type CacheConfig struct {
	TTL         time.Duration
	RedisURL    string
	RedisPrefix string
}

type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from the environment, loading .env first when it
// exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	ttl, err := time.ParseDuration(getEnv("ENTITLEMENT_CACHE_TTL", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid ENTITLEMENT_CACHE_TTL: %w", err)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("invalid ENTITLEMENT_CACHE_TTL: must not be negative")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
		},
		Database: DatabaseConfig{
			URL: os.Getenv("DATABASE_URL"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
		},
		Cron: CronConfig{
			Secret:             os.Getenv("CRON_SECRET"),
			PlanExpirySchedule: getEnv("PLAN_EXPIRY_SCHEDULE", "0 0 * * *"),
			Disabled:           getEnv("PLAN_EXPIRY_CRON_DISABLED", "false") == "true",
		},
		Cache: CacheConfig{
			TTL:         ttl,
			RedisURL:    os.Getenv("REDIS_URL"),
			RedisPrefix: getEnv("REDIS_PREFIX", "webaudit:entitlements:"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}
	return cfg, nil
}

// Validate reports settings the API server cannot start without.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is not set")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
