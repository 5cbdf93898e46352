package auth

import (
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
)

const DefaultTokenTTL = 24 * time.Hour

type Config struct {
	// AdminSecret guards /api/admin/*. Admin routes answer 500 when unset.
	AdminSecret string
	// JWTSecret turns on bearer authentication for the public /api routes.
	JWTSecret string
	TokenTTL  time.Duration
}

func LoadConfig() Config {
	return Config{
		AdminSecret: env.GetEnvStringOrDefault("ADMIN_SECRET_KEY", ""),
		JWTSecret:   env.GetEnvStringOrDefault("JWT_SECRET_KEY", ""),
		TokenTTL:    env.GetEnvDurationOrDefault("API_TOKEN_TTL", DefaultTokenTTL),
	}
}
