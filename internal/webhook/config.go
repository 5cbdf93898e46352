package webhook

import (
	"fmt"
	"net/url"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
)

type Config struct {
	URLs         []string
	Secret       string
	Events       []EventType
	Workers      int
	RetryLimit   int
	RetryBackoff time.Duration
	QueueSize    int
	Timeout      time.Duration
	AllowPrivate bool
	HistorySize  int
}

func DefaultConfig() Config {
	return Config{
		Workers:      4,
		RetryLimit:   3,
		RetryBackoff: 2 * time.Second,
		QueueSize:    1000,
		Timeout:      10 * time.Second,
		HistorySize:  50,
	}
}

// LoadConfig reads the WEBHOOK_* environment. An empty WEBHOOK_EVENTS
// subscribes the targets to every event.
func LoadConfig() Config {
	cfg := DefaultConfig()
	cfg.URLs = env.GetEnvListOrDefault("WEBHOOK_URLS", nil)
	cfg.Secret = env.GetEnvStringOrDefault("WEBHOOK_SECRET", "")
	for _, evt := range env.GetEnvListOrDefault("WEBHOOK_EVENTS", nil) {
		cfg.Events = append(cfg.Events, EventType(evt))
	}
	cfg.Workers = env.GetEnvIntOrDefault("WEBHOOK_WORKERS", cfg.Workers)
	cfg.RetryLimit = env.GetEnvIntOrDefault("WEBHOOK_RETRY_LIMIT", cfg.RetryLimit)
	cfg.Timeout = env.GetEnvDurationOrDefault("WEBHOOK_TIMEOUT", cfg.Timeout)
	cfg.AllowPrivate = env.GetEnvBoolOrDefault("WEBHOOK_ALLOW_PRIVATE", false)
	return cfg
}

func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("webhook workers must be positive, got %d", c.Workers)
	}
	if c.RetryLimit <= 0 {
		return fmt.Errorf("webhook retry limit must be positive, got %d", c.RetryLimit)
	}
	for _, raw := range c.URLs {
		if _, err := url.ParseRequestURI(raw); err != nil {
			return fmt.Errorf("invalid webhook url %q: %w", raw, err)
		}
	}
	for _, evt := range c.Events {
		if !isKnownEvent(evt) {
			return fmt.Errorf("unknown webhook event %q", evt)
		}
	}
	return nil
}

func isKnownEvent(evt EventType) bool {
	for _, known := range KnownEvents {
		if known == evt {
			return true
		}
	}
	return false
}
