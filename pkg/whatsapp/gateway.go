package whatsapp

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"sync"
	"time"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"golang.org/x/sync/singleflight"
	"google.golang.org/protobuf/proto"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

var ErrNotConnected = errors.New("WhatsApp client is not connected")

const (
	logoutRequestTimeout = 30 * time.Second
	storeCleanupTimeout  = 5 * time.Second
	reinitTimeout        = time.Minute
)

// Hooks are the lifecycle and message callbacks of the gateway. They run on
// whatsmeow's event goroutine and must not block.
type Hooks struct {
	OnPairingCode  func(qrBase64 string)
	OnConnected    func()
	OnDisconnected func(reason string)
	OnAuthFailure  func(reason string)
	OnLoggedOut    func(reason string)
	OnMessage      func(msg IncomingMessage)
}

// IncomingMessage is the subset of a received message the chatbot needs.
type IncomingMessage struct {
	ChatID string
	// AltChatID is the phone number id of a chat addressed by LID, when the
	// server disclosed it.
	AltChatID      string
	MessageID      string
	SenderID       string
	PushName       string
	Text           string
	IsFromSelf     bool
	IsStatusUpdate bool
	IsGroup        bool
	Timestamp      time.Time
}

// Status is the connection snapshot served by /api/status. QRCode is only set
// while a pairing code is pending.
type Status struct {
	Connected bool    `json:"connected"`
	QRCode    *string `json:"qrCode"`
}

// Gateway owns the single WhatsApp session of the service.
type Gateway struct {
	cfg        Config
	container  *sqlstore.Container
	hooks      Hooks
	httpClient *http.Client

	mu      sync.RWMutex
	client  *whatsmeow.Client
	qrCode  string
	pairing context.CancelFunc

	group singleflight.Group
}

func New(container *sqlstore.Container, cfg Config, hooks Hooks) *Gateway {
	return &Gateway{
		cfg:        cfg,
		container:  container,
		hooks:      hooks,
		httpClient: &http.Client{Timeout: cfg.MediaTimeout},
	}
}

// Open opens the datastore described by cfg and builds a gateway on it.
func Open(ctx context.Context, cfg Config, hooks Hooks) (*Gateway, error) {
	container, err := OpenDatastore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(container, cfg, hooks), nil
}

func (g *Gateway) applyDeviceProps() {
	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	if g.cfg.VersionMajor > 0 {
		store.DeviceProps.Version.Primary = proto.Uint32(uint32(g.cfg.VersionMajor))
		store.DeviceProps.Version.Secondary = proto.Uint32(uint32(g.cfg.VersionMinor))
		store.DeviceProps.Version.Tertiary = proto.Uint32(uint32(g.cfg.VersionPatch))
	}
}

// Start creates the client from the stored device and connects it. An
// unpaired device starts the QR pairing loop instead.
func (g *Gateway) Start(ctx context.Context) error {
	device, err := g.container.GetFirstDevice(ctx)
	if err != nil {
		return err
	}

	g.applyDeviceProps()

	client := whatsmeow.NewClient(device, NewLogger("Client"))
	if g.cfg.ProxyURL != "" {
		if err := client.SetProxyAddress(g.cfg.ProxyURL); err != nil {
			return err
		}
	}
	client.EnableAutoReconnect = true
	client.AutoTrustIdentity = true
	client.AddEventHandler(g.handleEvent)

	g.mu.Lock()
	g.client = client
	g.mu.Unlock()

	if client.Store.ID == nil {
		return g.pair(client)
	}

	log.Gateway("start").Info("Restoring paired WhatsApp session")
	return client.Connect()
}

func (g *Gateway) pair(client *whatsmeow.Client) error {
	pairCtx, cancel := context.WithCancel(context.Background())

	qrChan, err := client.GetQRChannel(pairCtx)
	if err != nil {
		cancel()
		return err
	}
	if err := client.Connect(); err != nil {
		cancel()
		return err
	}

	g.mu.Lock()
	if g.pairing != nil {
		g.pairing()
	}
	g.pairing = cancel
	g.mu.Unlock()

	log.Gateway("pair").Info("Waiting for QR code pairing")
	go g.consumeQR(pairCtx, qrChan)
	return nil
}

func (g *Gateway) consumeQR(ctx context.Context, qrChan <-chan whatsmeow.QRChannelItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-qrChan:
			if !ok {
				return
			}
			switch evt.Event {
			case whatsmeow.QRChannelEventCode:
				qr, err := EncodeQR(evt.Code)
				if err != nil {
					log.Gateway("pair").WithError(err).Error("Failed to encode QR code")
					continue
				}
				g.setQR(qr)
				log.Gateway("pair").Info("QR code received, scan it to pair")
				if g.hooks.OnPairingCode != nil {
					g.hooks.OnPairingCode(qr)
				}
			case whatsmeow.QRChannelSuccess.Event:
				g.setQR("")
				return
			case whatsmeow.QRChannelTimeout.Event:
				g.setQR("")
				log.Gateway("pair").Warn("QR pairing timed out, generating a new code")
				g.failAuth("qr pairing timed out")
				go g.reinit("qr timeout")
				return
			case whatsmeow.QRChannelEventError:
				g.setQR("")
				reason := "qr channel error"
				if evt.Error != nil {
					reason = evt.Error.Error()
				}
				g.failAuth(reason)
				return
			default:
				g.setQR("")
				g.failAuth("pairing failed: " + evt.Event)
				return
			}
		}
	}
}

func (g *Gateway) failAuth(reason string) {
	log.Gateway("auth").Error("Authentication failure: " + reason)
	if g.hooks.OnAuthFailure != nil {
		g.hooks.OnAuthFailure(reason)
	}
}

func (g *Gateway) setQR(qr string) {
	g.mu.Lock()
	g.qrCode = qr
	g.mu.Unlock()
}

func (g *Gateway) current() *whatsmeow.Client {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.client
}

// ready returns the client if it is connected and logged in.
func (g *Gateway) ready() (*whatsmeow.Client, error) {
	client := g.current()
	if client == nil || !client.IsConnected() || !client.IsLoggedIn() {
		return nil, ErrNotConnected
	}
	return client, nil
}

func (g *Gateway) IsConnected() bool {
	_, err := g.ready()
	return err == nil
}

func (g *Gateway) Status() Status {
	if g.IsConnected() {
		return Status{Connected: true}
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.qrCode == "" {
		return Status{}
	}
	qr := g.qrCode
	return Status{QRCode: &qr}
}

// Reconnect logs the session out, when it is logged in, and initializes a new
// one that pairs with a fresh QR code. Concurrent calls share one run.
func (g *Gateway) Reconnect(ctx context.Context) error {
	_, err, _ := g.group.Do("reconnect", func() (interface{}, error) {
		g.teardown(ctx, true)
		return nil, g.Start(ctx)
	})
	return err
}

// EnsureConnected reconnects a paired session that dropped and was not
// recovered by whatsmeow's own reconnect loop.
func (g *Gateway) EnsureConnected(ctx context.Context) error {
	_, err, _ := g.group.Do("ensure", func() (interface{}, error) {
		client := g.current()
		if client == nil {
			return nil, g.Start(ctx)
		}
		if client.Store.ID == nil || client.IsConnected() {
			return nil, nil
		}
		log.Gateway("health").Warn("WhatsApp client is disconnected, reconnecting")
		return nil, client.Connect()
	})
	return err
}

func (g *Gateway) reinit(reason string) {
	ctx, cancel := context.WithTimeout(context.Background(), reinitTimeout)
	defer cancel()

	log.Gateway("reinit").Info("Reinitializing WhatsApp client: " + reason)
	_, err, _ := g.group.Do("reconnect", func() (interface{}, error) {
		g.teardown(ctx, false)
		return nil, g.Start(ctx)
	})
	if err != nil {
		log.Gateway("reinit").WithError(err).Error("Failed to reinitialize WhatsApp client")
	}
}

func (g *Gateway) teardown(ctx context.Context, logout bool) {
	g.mu.Lock()
	client := g.client
	g.client = nil
	g.qrCode = ""
	if g.pairing != nil {
		g.pairing()
		g.pairing = nil
	}
	g.mu.Unlock()

	if client == nil {
		return
	}
	client.RemoveEventHandlers()

	if logout && client.IsLoggedIn() {
		logoutCtx, cancel := context.WithTimeout(ctx, logoutRequestTimeout)
		defer cancel()
		err := client.Logout(logoutCtx)
		if err == nil {
			return
		}
		log.Gateway("logout").WithError(err).Warn("Logout request failed, removing local credentials")
	}

	client.Disconnect()
	if logout && client.Store.ID != nil {
		storeCtx, cancel := context.WithTimeout(ctx, storeCleanupTimeout)
		defer cancel()
		if err := client.Store.Delete(storeCtx); err != nil {
			log.Gateway("logout").WithError(err).Error("Failed to delete device credentials")
		}
	}
}

// Stop disconnects the client and closes the datastore.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	client := g.client
	g.client = nil
	if g.pairing != nil {
		g.pairing()
		g.pairing = nil
	}
	g.mu.Unlock()

	if client != nil {
		client.Disconnect()
	}
	return g.container.Close()
}
