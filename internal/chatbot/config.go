package chatbot

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/validation"
)

type Config struct {
	Enabled bool
	// FlowPath points to a YAML flow document; empty uses the embedded flow.
	FlowPath    string
	IgnoreChats []string
	// IgnoreGroups drops every group message before it reaches the flow.
	IgnoreGroups   bool
	MediaTimeout   time.Duration
	MediaTextDelay time.Duration
	QueueSize      int
	WorkerIdle     time.Duration
	// SendRate is the number of outbound sends allowed per second, 0 disables pacing.
	SendRate    float64
	AckReaction string
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		IgnoreGroups:   true,
		MediaTimeout:   20 * time.Second,
		MediaTextDelay: time.Second,
		QueueSize:      32,
		WorkerIdle:     2 * time.Minute,
	}
}

// LoadConfig reads the CHATBOT_* keys, falling back to DefaultConfig.
func LoadConfig() (Config, error) {
	def := DefaultConfig()
	cfg := Config{
		Enabled:        env.GetEnvBoolOrDefault("CHATBOT_ENABLED", def.Enabled),
		FlowPath:       env.GetEnvStringOrDefault("CHATBOT_FLOW_PATH", ""),
		IgnoreChats:    env.GetEnvListOrDefault("CHATBOT_IGNORE_CHATS", nil),
		IgnoreGroups:   env.GetEnvBoolOrDefault("CHATBOT_IGNORE_GROUPS", def.IgnoreGroups),
		MediaTimeout:   env.GetEnvDurationOrDefault("WHATSAPP_MEDIA_TIMEOUT", def.MediaTimeout),
		MediaTextDelay: env.GetEnvDurationOrDefault("CHATBOT_MEDIA_TEXT_DELAY", def.MediaTextDelay),
		QueueSize:      env.GetEnvIntOrDefault("CHATBOT_QUEUE_SIZE", def.QueueSize),
		WorkerIdle:     env.GetEnvDurationOrDefault("CHATBOT_WORKER_IDLE", def.WorkerIdle),
		SendRate:       env.GetEnvFloat64OrDefault("CHATBOT_SEND_RATE", 0),
		AckReaction:    strings.TrimSpace(env.GetEnvStringOrDefault("CHATBOT_ACK_REACTION", "")),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("chatbot queue size must be positive, got %d", c.QueueSize)
	}
	if c.MediaTimeout <= 0 {
		return fmt.Errorf("media timeout must be positive, got %s", c.MediaTimeout)
	}
	if c.MediaTextDelay < 0 {
		return fmt.Errorf("media text delay cannot be negative, got %s", c.MediaTextDelay)
	}
	if c.WorkerIdle <= 0 {
		return fmt.Errorf("worker idle timeout must be positive, got %s", c.WorkerIdle)
	}
	if c.SendRate < 0 {
		return fmt.Errorf("send rate cannot be negative, got %v", c.SendRate)
	}
	if c.AckReaction != "" {
		if err := validation.ValidateReaction(c.AckReaction); err != nil {
			return fmt.Errorf("CHATBOT_ACK_REACTION: %w", err)
		}
	}
	return nil
}
