package router

import (
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
)

const defaultBodyLimit = 8 * 1024 * 1024

// Config is the HTTP surface configuration read from the HTTP_* environment.
type Config struct {
	BaseURL    string
	CORSOrigin string
	BodyLimit  int
	GZipLevel  int
	CacheTTL   time.Duration
}

func LoadConfig() Config {
	return Config{
		// HTTP_BASE_URL: empty by default (no prefix)
		BaseURL: NormalizeBaseURL(env.GetEnvStringOrDefault("HTTP_BASE_URL", "")),
		// HTTP_CORS_ORIGIN: default "*" (allow all)
		CORSOrigin: env.GetEnvStringOrDefault("HTTP_CORS_ORIGIN", "*"),
		BodyLimit:  env.GetEnvSizeOrDefault("HTTP_BODY_LIMIT_SIZE", defaultBodyLimit),
		GZipLevel:  env.GetEnvIntOrDefault("HTTP_GZIP_LEVEL", 1),
		CacheTTL:   time.Duration(env.GetEnvIntOrDefault("HTTP_CACHE_TTL_SECONDS", 5)) * time.Second,
	}
}

// NormalizeBaseURL turns "api/", "/api" or "/api/" into "/api" and "" or "/"
// into "".
func NormalizeBaseURL(raw string) string {
	base := strings.TrimRight(strings.TrimSpace(raw), "/")
	if base == "" {
		return ""
	}
	return "/" + strings.TrimLeft(base, "/")
}
