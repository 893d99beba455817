package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment variables.
// Empty MongoURI, KafkaBrokers or RedisAddr select the in-process implementations.
type Config struct {
	Env                string
	HTTPAddr           string
	MongoURI           string
	MongoDB            string
	KafkaBrokers       []string
	KafkaTopicPrefix   string
	KafkaGroupID       string
	RedisAddr          string
	RateLimitWindow    time.Duration
	RateLimitMax       int
	JWTSecret          string
	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	NotifyBackend      string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "donateo"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "donateo-chat"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		NotifyBackend:    strings.ToLower(getEnv("NOTIFY_BACKEND", "log")),
	}
	brokers := getEnv("KAFKA_BROKERS", "")
	if brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	window, err := parseDurationEnv("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return Config{}, err
	}
	if window <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	cfg.RateLimitWindow = window

	limit, err := parseIntEnv("RATE_LIMIT_MAX", 20)
	if err != nil {
		return Config{}, err
	}
	if limit <= 0 {
		return Config{}, fmt.Errorf("RATE_LIMIT_MAX must be positive")
	}
	cfg.RateLimitMax = limit

	idempotencyTTL, err := parseDurationEnv("IDEMP_TTL", 24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.IdempotencyTTL = idempotencyTTL

	poll, err := parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}
	cfg.OutboxPollInterval = poll

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	switch cfg.NotifyBackend {
	case "log", "kafka", "mongo":
	default:
		return Config{}, fmt.Errorf("invalid NOTIFY_BACKEND %q", cfg.NotifyBackend)
	}
	if cfg.NotifyBackend == "kafka" && len(cfg.KafkaBrokers) == 0 {
		return Config{}, fmt.Errorf("NOTIFY_BACKEND=kafka requires KAFKA_BROKERS")
	}
	if cfg.NotifyBackend == "mongo" && cfg.MongoURI == "" {
		return Config{}, fmt.Errorf("NOTIFY_BACKEND=mongo requires MONGO_URI")
	}
	return cfg, nil
}

// Topic applies the configured prefix to a topic name.
func (c Config) Topic(name string) string {
	return c.KafkaTopicPrefix + name
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
