// internal/config/config.go
package config

import (
	"os"

	"ruleboard-service/internal/pkg/jwt"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	RedisAddr   string
	RedisPass   string
	JWT         jwt.Config
	AuthURL     string
	FeedURL     string
	CORSOrigin  string
}

func Load() *Config {
	return &Config{
		HTTPAddr:    getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisAddr:   getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPass:   getEnv("REDIS_PASSWORD", ""),
		JWT: jwt.Config{
			Secret:   getEnv("JWT_SECRET", ""),
			Issuer:   getEnv("JWT_ISSUER", ""),
			Audience: getEnv("JWT_AUDIENCE", ""),
		},
		AuthURL:    getEnv("AUTH_URL", ""),
		FeedURL:    getEnv("FEED_URL", ""),
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
