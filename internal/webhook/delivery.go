package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/metrics"
)

const userAgent = "WhatsApp-Chatbot-Flow/1.0"

// Notifier posts lifecycle events to the configured webhook URLs from a pool
// of workers. Publish never blocks the caller.
type Notifier struct {
	cfg        Config
	httpClient *http.Client
	metrics    *metrics.Metrics
	queue      chan *deliveryTask

	mu     sync.RWMutex
	closed bool

	historyMu sync.Mutex
	history   []DeliveryLog

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

type deliveryTask struct {
	url   string
	event Event
}

type Option func(*Notifier)

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) { n.httpClient = client }
}

func New(cfg Config, opts ...Option) *Notifier {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}

	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		queue:      make(chan *deliveryTask, cfg.QueueSize),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.Enabled() {
		for i := 0; i < cfg.Workers; i++ {
			n.wg.Add(1)
			go n.worker()
		}
	}
	return n
}

func (n *Notifier) Enabled() bool {
	return len(n.cfg.URLs) > 0
}

// Publish queues event for every webhook URL subscribed to it. Events are
// dropped when the queue is full or the notifier is shut down.
func (n *Notifier) Publish(event string, data map[string]any) {
	if !n.Enabled() || !n.subscribed(EventType(event)) {
		return
	}

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}

	evt := Event{EventType: EventType(event), Timestamp: time.Now().UTC(), Data: data}
	for _, target := range n.cfg.URLs {
		select {
		case n.queue <- &deliveryTask{url: target, event: evt}:
		default:
			log.Print(nil).WithField("event", event).Warn("Webhook queue is full, dropping event")
			n.record(DeliveryLog{URL: target, EventType: evt.EventType, Status: DeliveryDropped, LastError: "queue full"})
		}
	}
}

func (n *Notifier) subscribed(eventType EventType) bool {
	if len(n.cfg.Events) == 0 {
		return true
	}
	for _, evt := range n.cfg.Events {
		if evt == eventType {
			return true
		}
	}
	return false
}

// Shutdown stops accepting events and waits for queued deliveries. When ctx
// expires first the in-flight requests are aborted.
func (n *Notifier) Shutdown(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}

// Recent returns the latest delivery results, newest last.
func (n *Notifier) Recent() []DeliveryLog {
	n.historyMu.Lock()
	defer n.historyMu.Unlock()
	out := make([]DeliveryLog, len(n.history))
	copy(out, n.history)
	return out
}

func (n *Notifier) record(entry DeliveryLog) {
	entry.CreatedAt = time.Now().UTC()
	if n.metrics != nil {
		n.metrics.Webhooks.WithLabelValues(string(entry.EventType), string(entry.Status)).Inc()
	}

	size := n.cfg.HistorySize
	if size <= 0 {
		return
	}
	n.historyMu.Lock()
	n.history = append(n.history, entry)
	if len(n.history) > size {
		n.history = n.history[len(n.history)-size:]
	}
	n.historyMu.Unlock()
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for task := range n.queue {
		n.deliver(task)
	}
}

func (n *Notifier) deliver(task *deliveryTask) {
	entry := DeliveryLog{URL: task.url, EventType: task.event.EventType, Status: DeliveryFailed}

	if err := validateURL(task.url, n.cfg.AllowPrivate); err != nil {
		entry.LastError = err.Error()
		n.record(entry)
		log.Print(nil).WithError(err).WithField("event", task.event.EventType).Error("Webhook URL rejected")
		return
	}

	payload, err := json.Marshal(task.event)
	if err != nil {
		entry.LastError = err.Error()
		n.record(entry)
		log.Print(nil).WithError(err).Error("Failed to marshal webhook event")
		return
	}

	var lastErr error
	for attempt := 1; attempt <= n.cfg.RetryLimit; attempt++ {
		entry.AttemptCount = attempt
		lastErr = n.post(task, payload)
		if lastErr == nil {
			entry.Status = DeliverySuccess
			n.record(entry)
			log.Print(nil).WithField("event", task.event.EventType).WithField("attempt", attempt).Debug("Webhook delivered")
			return
		}
		if attempt < n.cfg.RetryLimit && !n.wait(time.Duration(attempt)*n.cfg.RetryBackoff) {
			break
		}
	}

	entry.LastError = lastErr.Error()
	n.record(entry)
	log.Print(nil).WithError(lastErr).WithField("event", task.event.EventType).Warn("Webhook delivery failed")
}

func (n *Notifier) post(task *deliveryTask, payload []byte) error {
	req, err := http.NewRequestWithContext(n.ctx, http.MethodPost, task.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", string(task.event.EventType))
	req.Header.Set("User-Agent", userAgent)
	if n.cfg.Secret != "" {
		signature := Sign(payload, n.cfg.Secret)
		req.Header.Set("X-Webhook-Signature", signature)
		req.Header.Set("X-Hub-Signature-256", signature)
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

// wait sleeps for d unless the notifier is canceled first.
func (n *Notifier) wait(d time.Duration) bool {
	if d <= 0 {
		return n.ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-n.ctx.Done():
		return false
	}
}

// Sign returns the sha256 HMAC of payload in the "sha256=<hex>" form.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func validateURL(rawURL string, allowPrivate bool) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return err
	}
	if allowPrivate {
		if u.Scheme != "https" && u.Scheme != "http" {
			return errors.New("only HTTP(S) URLs are allowed")
		}
		return nil
	}

	if u.Scheme != "https" {
		return errors.New("only HTTPS URLs are allowed")
	}
	host := strings.ToLower(u.Hostname())
	if host == "localhost" {
		return errors.New("private/local network URLs are not allowed")
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() {
			return errors.New("private/local network URLs are not allowed")
		}
	}
	return nil
}
