// Package config loads runtime settings from the environment (and an optional .env file).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the full application configuration.
type Config struct {
	Port        string
	JWTSecret   string
	CORSOrigins []string

	DB        DBConfig
	Log       LogConfig
	Redis     RedisConfig
	Storage   StorageConfig
	Reminder  ReminderConfig
	RateLimit RateLimitConfig

	// StatsCacheTTL controls how long report statistics stay cached in Redis.
	StatsCacheTTL time.Duration
}

// DBConfig holds PostgreSQL connection settings.
// URL wins over the individual fields when set.
type DBConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
}

// DSN returns a pgx-compatible connection string.
func (c *DBConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}

type LogConfig struct {
	Level  string
	Format string
}

// RedisConfig is optional. An empty Addr disables the statistics cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// StorageConfig selects where report exports are archived.
type StorageConfig struct {
	Driver  string // "local" or "r2"
	Dir     string
	BaseURL string

	R2AccountID string
	R2AccessKey string
	R2SecretKey string
	R2Bucket    string
	R2PublicURL string
}

// ReminderConfig drives the stale-pending-report reminder job.
type ReminderConfig struct {
	Schedule  string
	StaleDays int
}

// RateLimitConfig holds per-minute request budgets per endpoint tier.
type RateLimitConfig struct {
	Auth  int
	Write int
	Heavy int
}

// Load reads configuration from the environment.
// A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		JWTSecret:   os.Getenv("JWT_SECRET"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		DB: DBConfig{
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: os.Getenv("DB_PASSWORD"),
			Name:     getEnv("DB_NAME", "redas"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Storage: StorageConfig{
			Driver:      getEnv("STORAGE_DRIVER", "local"),
			Dir:         getEnv("UPLOAD_DIR", "uploads"),
			BaseURL:     getEnv("UPLOAD_BASE_URL", "/api/files"),
			R2AccountID: os.Getenv("R2_ACCOUNT_ID"),
			R2AccessKey: os.Getenv("R2_ACCESS_KEY"),
			R2SecretKey: os.Getenv("R2_SECRET_KEY"),
			R2Bucket:    os.Getenv("R2_BUCKET"),
			R2PublicURL: os.Getenv("R2_PUBLIC_URL"),
		},
		Reminder: ReminderConfig{
			Schedule:  getEnv("REMINDER_SCHEDULE", "0 8 * * *"),
			StaleDays: getEnvInt("REMINDER_STALE_DAYS", 3),
		},
		RateLimit: RateLimitConfig{
			Auth:  getEnvInt("RATE_LIMIT_AUTH", 5),
			Write: getEnvInt("RATE_LIMIT_WRITE", 30),
			Heavy: getEnvInt("RATE_LIMIT_HEAVY", 10),
		},
		StatsCacheTTL: getEnvDuration("STATS_CACHE_TTL", 30*time.Second),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	switch c.Storage.Driver {
	case "local":
	case "r2":
		if c.Storage.R2AccountID == "" || c.Storage.R2Bucket == "" {
			return errors.New("R2_ACCOUNT_ID and R2_BUCKET are required when STORAGE_DRIVER=r2")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.Reminder.StaleDays < 1 {
		return errors.New("REMINDER_STALE_DAYS must be at least 1")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
