// Package config loads runtime settings from .env files and the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/SIMPLYBOYS/tweetpulse/internal/twitter"
	"github.com/joho/godotenv"
)

const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config holds the application configuration.
type Config struct {
	BearerToken        string
	TwitterAPIBase     string
	TwitterTimeout     time.Duration
	TwitterGranularity string // day, hour or minute

	HTTPAddr    string
	CORSOrigins []string

	DataRoot       string
	StorageBackend string
	DB             DBConfig

	RedisAddr     string
	RedisDB       int
	ChartCacheTTL time.Duration

	LogLevel string
	LogDir   string
}

// DBConfig is only read when StorageBackend is postgres.
type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

// DSN renders the lib/pq connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// Load reads configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	for _, path := range envPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		BearerToken:        getEnvString("BEARER_TOKEN", ""),
		TwitterAPIBase:     strings.TrimRight(getEnvString("TWITTER_API_BASE", "https://api.twitter.com"), "/"),
		TwitterTimeout:     getEnvDuration("TWITTER_TIMEOUT", 15*time.Second),
		TwitterGranularity: strings.ToLower(getEnvString("TWITTER_GRANULARITY", twitter.GranularityDay)),
		HTTPAddr:           getEnvString("HTTP_ADDR", ":5000"),
		CORSOrigins:        getEnvList("CORS_ORIGINS"),
		DataRoot:           getEnvString("DATA_ROOT", "."),
		StorageBackend:     strings.ToLower(getEnvString("STORAGE_BACKEND", BackendFile)),
		DB: DBConfig{
			Host:     getEnvString("DB_HOST", "localhost"),
			Port:     getEnvString("DB_PORT", "5432"),
			User:     getEnvString("DB_USER", "tweetpulse"),
			Password: getEnvString("DB_PASSWORD", ""),
			Name:     getEnvString("DB_NAME", "tweetpulse"),
		},
		RedisAddr:     getEnvString("REDIS_ADDR", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		ChartCacheTTL: getEnvDuration("CHART_CACHE_TTL", 10*time.Minute),
		LogLevel:      getEnvString("LOG_LEVEL", "info"),
		LogDir:        getEnvString("LOG_DIR", ""),
	}

	if cfg.BearerToken == "" {
		return nil, fmt.Errorf("BEARER_TOKEN is required (set it in the environment or a .env file)")
	}

	switch cfg.StorageBackend {
	case BackendFile, BackendPostgres:
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND %q (want %q or %q)", cfg.StorageBackend, BackendFile, BackendPostgres)
	}

	switch cfg.TwitterGranularity {
	case twitter.GranularityDay, twitter.GranularityHour, twitter.GranularityMinute:
	default:
		return nil, fmt.Errorf("unknown TWITTER_GRANULARITY %q (want day, hour or minute)", cfg.TwitterGranularity)
	}

	return cfg, nil
}

// envPaths returns the .env locations to try, in order.
func envPaths() []string {
	var paths []string
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths,
			filepath.Join(cwd, ".env"),
			filepath.Join(filepath.Dir(cwd), ".env"),
		)
	}
	return paths
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvDuration accepts "30s", "1m" or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
