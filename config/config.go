package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Alarm storage and delivery
	DatabaseURL      string
	TelegramBotToken string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	MetricsAddr   string

	// Watcher tuning
	RegistryPeriod time.Duration
	JanitorWarmup  time.Duration
	JanitorPeriod  time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		DatabaseURL:      mustEnv("DATABASE_URL"),
		TelegramBotToken: mustEnv("TELEGRAM_BOT_TOKEN"),

		// Redis is optional: the journal is skipped when REDIS_ADDR is empty.
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		RegistryPeriod: getDuration("REGISTRY_PERIOD_SECONDS", 5*time.Second),
		JanitorWarmup:  getDuration("JANITOR_WARMUP_SECONDS", 10*time.Minute),
		JanitorPeriod:  getDuration("JANITOR_PERIOD_SECONDS", 5*time.Minute),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] skipping invalid value for %s: %q", key, v)
		return fallback
	}
	return time.Duration(n) * time.Second
}
