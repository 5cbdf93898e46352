package chatbot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/dialogue"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/metrics"
)

var (
	ErrQueueFull = errors.New("chatbot: chat queue full")
	ErrClosed    = errors.New("chatbot: adapter closed")
)

const EventTransition = "chatbot.transition"

// Sender is the outbound half of the messaging gateway.
type Sender interface {
	SendText(ctx context.Context, chatID string, text string) error
	SendMedia(ctx context.Context, chatID string, media flow.Media) error
}

// Reactor is implemented by gateways able to react to a received message.
type Reactor interface {
	React(ctx context.Context, chatID string, senderID string, messageID string, emoji string) error
}

// Stepper runs one dialogue step.
type Stepper interface {
	Step(ctx context.Context, chatID string, raw string) (dialogue.Reply, error)
}

// Notifier receives chat transitions for outside consumers such as webhooks.
type Notifier interface {
	Publish(event string, data map[string]any)
}

// Inbound is a message event as delivered by the gateway.
type Inbound struct {
	ChatID         string
	AltChatID      string
	MessageID      string
	SenderID       string
	Text           string
	IsFromSelf     bool
	IsStatusUpdate bool
	IsGroup        bool
	Timestamp      time.Time
}

// Adapter connects the gateway to the dialogue engine. Every chat gets its own
// worker goroutine draining a bounded queue, so messages of one chat are
// handled in arrival order while chats proceed independently.
type Adapter struct {
	cfg      Config
	engine   Stepper
	sender   Sender
	reactor  Reactor
	notifier Notifier
	metrics  *metrics.Metrics
	limiter  *rate.Limiter
	ignore   map[string]struct{}

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup
}

type Option func(*Adapter)

func WithNotifier(n Notifier) Option {
	return func(a *Adapter) {
		a.notifier = n
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) {
		a.metrics = m
	}
}

// WithReactor overrides the reactor detected on the sender.
func WithReactor(r Reactor) Option {
	return func(a *Adapter) {
		a.reactor = r
	}
}

func New(cfg Config, engine Stepper, sender Sender, opts ...Option) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	a := &Adapter{
		cfg:     cfg,
		engine:  engine,
		sender:  sender,
		ignore:  make(map[string]struct{}, len(cfg.IgnoreChats)),
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[string]*worker),
	}
	if r, ok := sender.(Reactor); ok {
		a.reactor = r
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.metrics == nil {
		a.metrics = metrics.New()
	}
	if cfg.SendRate > 0 {
		burst := int(cfg.SendRate)
		if burst < 1 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(cfg.SendRate), burst)
	}
	for _, id := range cfg.IgnoreChats {
		if key := chatKey(id); key != "" {
			a.ignore[key] = struct{}{}
		}
	}
	return a
}

// chatKey canonicalizes a chat id for ignore list matching. Bare numbers and
// the legacy c.us server name the phone number chat; every other server is
// kept, so a group never matches a user with the same digits.
func chatKey(chatID string) string {
	id := strings.TrimSpace(chatID)
	user, server, ok := strings.Cut(id, "@")
	user = strings.TrimPrefix(user, "+")
	if user == "" {
		return ""
	}
	if !ok || server == "" || server == "c.us" {
		server = "s.whatsapp.net"
	}
	return user + "@" + strings.ToLower(server)
}

// Ignored reports whether any of chatIDs is on the ignore list, so
// 5511999999999, 5511999999999@c.us and 5511999999999@s.whatsapp.net name the
// same chat. Chats addressed by LID match through their phone number id when
// the gateway resolved one, otherwise the <lid>@lid id has to be listed.
func (a *Adapter) Ignored(chatIDs ...string) bool {
	for _, id := range chatIDs {
		if key := chatKey(id); key != "" {
			if _, ok := a.ignore[key]; ok {
				return true
			}
		}
	}
	return false
}

// Handle filters an inbound event and queues it on its chat's worker. It never
// blocks on dialogue processing or sends.
func (a *Adapter) Handle(in Inbound) error {
	switch {
	case in.IsFromSelf:
		a.metrics.Inbound.WithLabelValues("ignored_self").Inc()
		return nil
	case in.IsStatusUpdate:
		a.metrics.Inbound.WithLabelValues("ignored_status").Inc()
		return nil
	case in.ChatID == "":
		a.metrics.Inbound.WithLabelValues("invalid").Inc()
		return errors.New("chatbot: inbound message without chat id")
	case in.IsGroup && a.cfg.IgnoreGroups:
		a.metrics.Inbound.WithLabelValues("ignored_group").Inc()
		return nil
	case a.Ignored(in.ChatID, in.AltChatID):
		a.metrics.Inbound.WithLabelValues("ignored_list").Inc()
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	w, ok := a.workers[in.ChatID]
	if !ok {
		w = &worker{chatID: in.ChatID, queue: make(chan Inbound, a.cfg.QueueSize)}
		a.workers[in.ChatID] = w
		a.wg.Add(1)
		a.metrics.Workers.Inc()
		go a.run(w)
	}

	select {
	case w.queue <- in:
		a.metrics.Inbound.WithLabelValues("queued").Inc()
		return nil
	default:
		a.metrics.Inbound.WithLabelValues("queue_full").Inc()
		log.Chat(in.ChatID, "handle").Warn("chat queue is full, dropping message")
		return ErrQueueFull
	}
}

// Workers returns the number of chats with a running worker.
func (a *Adapter) Workers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.workers)
}

// Close stops accepting messages and waits for queued ones to be processed.
// When ctx expires first, in-flight sends are canceled.
func (a *Adapter) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		for _, w := range a.workers {
			close(w.queue)
		}
	}
	a.mu.Unlock()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		<-done
		return ctx.Err()
	}
}
