package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	DeviceCacheMemory = "memory"
	DeviceCacheRedis  = "redis"
)

type Config struct {
	AppURL                   string
	DatabaseDSN              string
	RateLimit                int
	RedisAddr                string
	DeviceCacheBackend       string
	DeviceCacheTTLSeconds    int
	DeviceCacheSize          int
	DeviceCacheKeyPrefix     string
	ReconcileIntervalSeconds int
	StorageRetryAttempts     int
	ShutdownTimeoutSeconds   int
	LogLevel                 string
}

func Load() Config {
	appHost := getEnv("APP_HOST", "127.0.0.1")
	appPort := getEnv("APP_PORT", "8080")
	redisHost := getEnv("REDIS_HOST", "127.0.0.1")
	redisPort := getEnv("REDIS_PORT", "6379")

	cfg := Config{
		AppURL:                   fmt.Sprintf("%s:%s", appHost, appPort),
		DatabaseDSN:              getEnv("DATABASE_DSN", "tasks.db"),
		RateLimit:                getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
		RedisAddr:                fmt.Sprintf("%s:%s", redisHost, redisPort),
		DeviceCacheBackend:       getEnv("DEVICE_CACHE_BACKEND", DeviceCacheMemory),
		DeviceCacheTTLSeconds:    getEnvAsInt("DEVICE_CACHE_TTL_SECONDS", 300),
		DeviceCacheSize:          getEnvAsInt("DEVICE_CACHE_SIZE", 10000),
		DeviceCacheKeyPrefix:     getEnv("DEVICE_CACHE_KEY_PREFIX", "task_device:"),
		ReconcileIntervalSeconds: getEnvAsInt("RECONCILE_INTERVAL_SECONDS", 60),
		StorageRetryAttempts:     getEnvAsInt("STORAGE_RETRY_ATTEMPTS", 3),
		ShutdownTimeoutSeconds:   getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 20),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
	}

	validate(cfg)
	return cfg
}

func (c Config) DeviceCacheTTL() time.Duration {
	return time.Duration(c.DeviceCacheTTLSeconds) * time.Second
}

func (c Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// SetupLogging applies LOG_LEVEL to the global logger.
func SetupLogging(cfg Config) {
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid LOG_LEVEL %q", cfg.LogLevel)
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func validate(cfg Config) {
	if cfg.AppURL == "" {
		log.Fatal("APP_URL must not be empty (e.g. 127.0.0.1:8080)")
	}
	if cfg.DatabaseDSN == "" {
		log.Fatal("DATABASE_DSN must not be empty")
	}
	if cfg.RateLimit <= 0 {
		log.Fatal("RATE_LIMIT_PER_MINUTE must be greater than 0")
	}
	if cfg.DeviceCacheBackend != DeviceCacheMemory && cfg.DeviceCacheBackend != DeviceCacheRedis {
		log.Fatalf("DEVICE_CACHE_BACKEND must be %q or %q", DeviceCacheMemory, DeviceCacheRedis)
	}
	if cfg.DeviceCacheTTLSeconds <= 0 {
		log.Fatal("DEVICE_CACHE_TTL_SECONDS must be greater than 0")
	}
	if cfg.DeviceCacheSize <= 0 {
		log.Fatal("DEVICE_CACHE_SIZE must be greater than 0")
	}
	if cfg.ReconcileIntervalSeconds < 0 {
		log.Fatal("RECONCILE_INTERVAL_SECONDS must not be negative")
	}
	if cfg.StorageRetryAttempts <= 0 {
		log.Fatal("STORAGE_RETRY_ATTEMPTS must be greater than 0")
	}
	if cfg.ShutdownTimeoutSeconds <= 0 {
		log.Fatal("SHUTDOWN_TIMEOUT_SECONDS must be greater than 0")
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			log.Fatalf("invalid integer value for %s", key)
		}
		return i
	}
	return defaultVal
}
