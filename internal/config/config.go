package config

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	ServiceName string

	// Phoenix API
	PhoenixBaseURL       string
	PhoenixTimeout       time.Duration
	PhoenixRetryAttempts int
	// when true, 5xx responses are retried with the same backoff as transport failures
	PhoenixRetryServerErrors bool

	// response cache; an empty RedisAddr keeps the cache in process memory
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// circuit breaker in front of the Phoenix client, threshold 0 disables it
	CircuitFailureThreshold int
	CircuitCooldown         time.Duration

	// requests per client IP per minute on /api, 0 disables limiting
	RateLimitPerMinute int

	CORSAllowedOrigins []string
	OTLPEndpoint       string
}

func Load() Config {
	// a missing .env file is fine, real env vars always win
	_ = godotenv.Load()

	return Config{
		Env:         getEnv("APP_ENV", "dev"),
		Port:        getEnvInt("PORT", 8080),
		ServiceName: getEnv("SERVICE_NAME", "mg-gateway"),

		PhoenixBaseURL:           getEnv("PHOENIX_API_BASE_URL", "http://localhost:4000/api"),
		PhoenixTimeout:           getEnvDuration("PHOENIX_API_TIMEOUT", 10*time.Second),
		PhoenixRetryAttempts:     getEnvInt("PHOENIX_API_RETRY_ATTEMPTS", 3),
		PhoenixRetryServerErrors: getEnvBool("PHOENIX_RETRY_SERVER_ERRORS", false),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 0),

		CircuitFailureThreshold: getEnvInt("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitCooldown:         getEnvDuration("CIRCUIT_COOLDOWN", 15*time.Second),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		OTLPEndpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}
}

func WithTimeout(duration time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), duration)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)
		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return b
	}
	return fallback
}

// getEnvDuration accepts Go durations ("750ms", "10s") and bare integers as seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return fallback
		}
		return time.Duration(secs) * time.Second
	}

	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
