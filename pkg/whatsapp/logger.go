package whatsapp

import (
	"fmt"

	"github.com/sirupsen/logrus"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

// waLogger routes whatsmeow's internal logging through logrus.
type waLogger struct {
	entry *logrus.Entry
}

// NewLogger returns a whatsmeow logger tagged with module.
func NewLogger(module string) waLog.Logger {
	return &waLogger{entry: log.Logger().WithField("module", module)}
}

func (l *waLogger) Debugf(msg string, args ...interface{}) {
	l.entry.Debug(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Infof(msg string, args ...interface{}) {
	l.entry.Info(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Warnf(msg string, args ...interface{}) {
	l.entry.Warn(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Errorf(msg string, args ...interface{}) {
	l.entry.Error(fmt.Sprintf(msg, args...))
}

func (l *waLogger) Sub(module string) waLog.Logger {
	parent, _ := l.entry.Data["module"].(string)
	if parent != "" {
		module = parent + "/" + module
	}
	return &waLogger{entry: l.entry.WithField("module", module)}
}
