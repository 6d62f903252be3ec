package config

import (
	"os"
	"time"
)

// Config carries all environment-driven settings. Defaults mirror local
// docker-compose development.
type Config struct {
	ListenAddr  string
	DatabaseDSN string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret   string
	IdentityTTL time.Duration

	TranslateGatewayURL string
	TranslateAPIKey     string
}

// Load reads configuration from the environment. Call godotenv.Load
// first if a .env file should contribute.
func Load() Config {
	return Config{
		ListenAddr:          getenv("LISTEN_ADDR", ":8080"),
		DatabaseDSN:         getenv("DATABASE_DSN", "host=localhost user=user password=password dbname=driftchat port=5432 sslmode=disable"),
		RedisAddr:           getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             0,
		JWTSecret:           getenv("JWT_SECRET", "dev-only-secret"),
		IdentityTTL:         72 * time.Hour,
		TranslateGatewayURL: getenv("TRANSLATE_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1/chat/completions"),
		TranslateAPIKey:     os.Getenv("TRANSLATE_API_KEY"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
