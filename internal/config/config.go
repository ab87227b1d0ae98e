package config

import (
	"os"
	"strconv"
	"strings"
)

type Config struct {
	HTTPAddr    string
	PostgresDSN string

	LogLevel  string
	LogFormat string
	AppEnv    string

	// SiteBaseURL prefixes the tracking URLs baked into generated email
	// packages.
	SiteBaseURL string

	AdminAPIKey string

	RemediationDueDays int

	RateLimitRequests      int
	RateLimitWindowSeconds int
	RateLimitMaxKeys       int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	KafkaBrokers           []string
	KafkaTrackingTopic     string
	KafkaScoreChangesTopic string
}

func FromEnv() Config {
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	return Config{
		HTTPAddr:               addr,
		PostgresDSN:            os.Getenv("POSTGRES_DSN"),
		LogLevel:               envDefault("LOG_LEVEL", "info"),
		LogFormat:              envDefault("LOG_FORMAT", "json"),
		AppEnv:                 envDefault("APP_ENV", "development"),
		SiteBaseURL:            envDefault("SITE_BASE_URL", "http://localhost:8080"),
		AdminAPIKey:            os.Getenv("ADMIN_API_KEY"),
		RemediationDueDays:     envIntDefault("REMEDIATION_DUE_DAYS", 7),
		RateLimitRequests:      envIntDefault("RATE_LIMIT_REQUESTS", 0),
		RateLimitWindowSeconds: envIntDefault("RATE_LIMIT_WINDOW_SECONDS", 60),
		RateLimitMaxKeys:       envIntDefault("RATE_LIMIT_MAX_KEYS", 10000),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                envIntDefault("REDIS_DB", 0),
		KafkaBrokers:           envList("KAFKA_BROKERS"),
		KafkaTrackingTopic:     envDefault("KAFKA_TRACKING_TOPIC", "phishing.tracking-events"),
		KafkaScoreChangesTopic: envDefault("KAFKA_SCORE_CHANGES_TOPIC", "phishing.score-changes"),
	}
}

func envDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func envIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
