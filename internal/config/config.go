package config

import (
	"os"
	"strconv"

	"github.com/google/uuid"
)

type Config struct {
	HTTPAddr          string
	DatabaseURL       string
	RedisAddr         string
	ServiceName       string
	InstanceID        string
	JWTSecret         string
	TracingEnabled    bool
	JaegerURL         string
	RateLimitRequests int
	RateLimitWindow   string
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:       mustEnv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", ""),
		ServiceName:       getEnv("SERVICE_NAME", "horde"),
		InstanceID:        getEnv("INSTANCE_ID", uuid.NewString()),
		JWTSecret:         mustEnv("JWT_SECRET"),
		TracingEnabled:    getEnvBool("TRACING_ENABLED", false),
		JaegerURL:         getEnv("JAEGER_URL", ""),
		RateLimitRequests: getEnvInt("RATE_LIMIT_REQUESTS", 300),
		RateLimitWindow:   getEnv("RATE_LIMIT_WINDOW", "1m"),
	}
}

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("missing required env: " + k)
	}
	return v
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "true"
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
