package log

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
)

var logger = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}
	l.SetLevel(parseLevel(env.GetEnvStringOrDefault("LOG_LEVEL", "info")))
	return l
}

func parseLevel(raw string) logrus.Level {
	level, err := logrus.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Logger exposes the process logger for bridges (whatsmeow, cron).
func Logger() *logrus.Logger {
	return logger
}

func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	fields := logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	}
	if v := c.Locals("request_id"); v != nil {
		fields["request_id"] = v
	}
	return logger.WithFields(fields)
}

// Chat returns an entry scoped to a conversation, with the chat id masked.
func Chat(chatID string, op string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"chat": MaskChatID(chatID),
		"op":   op,
	})
}

// Gateway returns an entry scoped to the messaging gateway.
func Gateway(op string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"component": "gateway",
		"op":        op,
	})
}

// MaskChatID hides the last four digits of the user part of a chat id.
func MaskChatID(chatID string) string {
	user, server, hasServer := strings.Cut(chatID, "@")
	if len(user) >= 4 {
		user = user[0:len(user)-4] + "xxxx"
	}
	if hasServer {
		return user + "@" + server
	}
	return user
}
