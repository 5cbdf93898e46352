package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"

	DefaultCapacity = 10000
)

type Config struct {
	Backend     string
	Capacity    int
	TTL         time.Duration
	RedisURL    string
	RedisPrefix string
}

func LoadConfig() Config {
	return Config{
		Backend:     strings.ToLower(env.GetEnvStringOrDefault("SESSION_STORE", BackendMemory)),
		Capacity:    env.GetEnvIntOrDefault("SESSION_CAPACITY", DefaultCapacity),
		TTL:         env.GetEnvDurationOrDefault("SESSION_TTL", 0),
		RedisURL:    env.GetEnvStringOrDefault("REDIS_URL", ""),
		RedisPrefix: env.GetEnvStringOrDefault("SESSION_REDIS_PREFIX", DefaultRedisPrefix),
	}
}

// Open builds the store selected by cfg.Backend. Callers own the returned
// store and should close it when it implements io.Closer.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		store, err := NewMemoryStore(cfg.Capacity, WithEvictCallback(func(chatID string, stateID string) {
			log.Chat(chatID, "session-evict").WithField("state", stateID).Debug("Session evicted by capacity bound")
		}))
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendRedis:
		store, err := NewRedisStore(ctx, cfg.RedisURL, WithTTL(cfg.TTL), WithPrefix(cfg.RedisPrefix))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.Backend)
	}
}
