// Process configuration. Values come from the environment, optionally
// seeded from a .env file, and may be overridden by CLI flags afterwards.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/nasasaki/LAPIS/logger"
	"go.uber.org/zap"
)

const (
	DefaultDBPath       = "./data/lapis.db"
	DefaultAddr         = "0.0.0.0:8080"
	DefaultPollInterval = time.Second
	DefaultLogLevel     = "info"
	DefaultCacheSize    = 1024
)

type Config struct {
	DBPath       string
	Addr         string
	PollInterval time.Duration
	LogLevel     string
	CacheSize    int
}

// Load reads .env (if present) and the LAPIS_* variables.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env found, using local environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function so tests don't have to touch the real environment.
func FromEnv(getenv func(string) string) Config {
	cfg := Config{
		DBPath:       DefaultDBPath,
		Addr:         DefaultAddr,
		PollInterval: DefaultPollInterval,
		LogLevel:     DefaultLogLevel,
		CacheSize:    DefaultCacheSize,
	}

	if v := getenv("LAPIS_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := getenv("LAPIS_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("LAPIS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv("LAPIS_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			logger.Warn("Invalid LAPIS_POLL_INTERVAL, using default", zap.String("value", v))
		} else {
			cfg.PollInterval = d
		}
	}
	if v := getenv("LAPIS_CACHE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("Invalid LAPIS_CACHE_SIZE, using default", zap.String("value", v))
		} else {
			cfg.CacheSize = n
		}
	}
	return cfg
}
