package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/internal/chatbot"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/internal/webhook"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/auth"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/dialogue"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/metrics"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/session"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/whatsapp"
)

// Service holds the long lived components shared by the routes and routines.
// Chatbot is nil when CHATBOT_ENABLED is false.
type Service struct {
	Router  router.Config
	Auth    auth.Config
	Chatbot chatbot.Config

	Flow     *flow.Definition
	Store    session.Store
	Sessions *session.Manager
	Engine   *dialogue.Engine
	Metrics  *metrics.Metrics
	Webhooks *webhook.Notifier
	Gateway  *pkgWhatsApp.Gateway
	Adapter  *chatbot.Adapter
	Versions *pkgWhatsApp.VersionRefresher
	Issuer   *auth.Issuer

	StartedAt time.Time
}

func loadFlow(path string) (*flow.Definition, error) {
	if path == "" {
		log.Print(nil).Info("Using the embedded chatbot flow")
		return flow.Default()
	}
	log.Print(nil).WithField("path", path).Info("Loading chatbot flow")
	return flow.LoadFile(path)
}

// Startup loads the configuration, builds every component and starts the
// WhatsApp gateway. A gateway that fails to connect is left to the health
// check routine; configuration and storage errors abort.
func Startup(ctx context.Context) (*Service, error) {
	log.Print(nil).Info("Running Startup Tasks")

	botCfg, err := chatbot.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("invalid chatbot configuration: %w", err)
	}
	hookCfg := webhook.LoadConfig()
	if err := hookCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook configuration: %w", err)
	}

	svc := &Service{
		Router:    router.LoadConfig(),
		Auth:      auth.LoadConfig(),
		Chatbot:   botCfg,
		Metrics:   metrics.New(),
		StartedAt: time.Now(),
	}
	svc.Issuer = auth.NewIssuer(svc.Auth.JWTSecret, svc.Auth.TokenTTL)

	svc.Flow, err = loadFlow(botCfg.FlowPath)
	if err != nil {
		return nil, err
	}

	sessionCfg := session.LoadConfig()
	svc.Store, err = session.Open(ctx, sessionCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	log.Print(nil).WithField("backend", sessionCfg.Backend).WithField("states", svc.Flow.Len()).Info("Session store ready")

	svc.Sessions = session.NewManager(svc.Store, svc.Flow.EntryID())
	svc.Engine = dialogue.New(svc.Flow, svc.Sessions)
	svc.Webhooks = webhook.New(hookCfg, webhook.WithMetrics(svc.Metrics))

	waCfg := pkgWhatsApp.LoadConfig()
	svc.Gateway, err = pkgWhatsApp.Open(ctx, waCfg, svc.hooks())
	if err != nil {
		svc.closeStore()
		return nil, fmt.Errorf("failed to open WhatsApp datastore: %w", err)
	}
	svc.Versions = pkgWhatsApp.NewVersionRefresher(waCfg.VersionRefreshWait)

	if botCfg.Enabled {
		svc.Adapter = chatbot.New(botCfg, svc.Engine, svc.Gateway,
			chatbot.WithNotifier(svc.Webhooks),
			chatbot.WithMetrics(svc.Metrics),
		)
	} else {
		log.Print(nil).Warn("Chatbot is disabled, inbound messages are ignored")
	}

	if err := svc.Gateway.Start(ctx); err != nil {
		log.Gateway("start").WithError(err).Error("Failed to start WhatsApp client, health check will retry")
	}

	return svc, nil
}

// hooks forwards gateway events to the metrics, the webhooks and the chatbot.
// The gateway is built before the adapter, so the hooks read it from svc.
func (svc *Service) hooks() pkgWhatsApp.Hooks {
	return pkgWhatsApp.Hooks{
		OnPairingCode: func(qr string) {
			svc.Webhooks.Publish(string(webhook.EventPairingQR), map[string]any{"qr": qr})
		},
		OnConnected: func() {
			svc.Metrics.SetConnected(true)
			svc.Webhooks.Publish(string(webhook.EventConnectionConnected), nil)
		},
		OnDisconnected: func(reason string) {
			svc.Metrics.SetConnected(false)
			svc.Webhooks.Publish(string(webhook.EventConnectionDisconnected), map[string]any{"reason": reason})
		},
		OnAuthFailure: func(reason string) {
			svc.Metrics.SetConnected(false)
			svc.Webhooks.Publish(string(webhook.EventConnectionAuthFailure), map[string]any{"reason": reason})
		},
		OnLoggedOut: func(reason string) {
			svc.Metrics.SetConnected(false)
			svc.Webhooks.Publish(string(webhook.EventConnectionLoggedOut), map[string]any{"reason": reason})
		},
		OnMessage: svc.onMessage,
	}
}

func (svc *Service) onMessage(msg pkgWhatsApp.IncomingMessage) {
	if svc.Adapter == nil {
		return
	}
	err := svc.Adapter.Handle(chatbot.Inbound{
		ChatID:         msg.ChatID,
		AltChatID:      msg.AltChatID,
		MessageID:      msg.MessageID,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		IsFromSelf:     msg.IsFromSelf,
		IsStatusUpdate: msg.IsStatusUpdate,
		IsGroup:        msg.IsGroup,
		Timestamp:      msg.Timestamp,
	})
	if err != nil && !errors.Is(err, chatbot.ErrQueueFull) {
		log.Chat(msg.ChatID, "inbound").WithError(err).Warn("Inbound message rejected")
	}
}

func (svc *Service) closeStore() {
	if closer, ok := svc.Store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Print(nil).WithError(err).Error("Failed to close session store")
		}
	}
}

// Shutdown drains the chat workers before the gateway goes away, then the
// webhook queue, then the stores.
func (svc *Service) Shutdown(ctx context.Context) error {
	var errs []error

	if svc.Adapter != nil {
		if err := svc.Adapter.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("chatbot: %w", err))
		}
	}
	if err := svc.Gateway.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("whatsapp: %w", err))
	}
	if err := svc.Webhooks.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("webhooks: %w", err))
	}
	svc.closeStore()

	return errors.Join(errs...)
}
