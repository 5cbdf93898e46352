package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

func TestParseChatID(t *testing.T) {
	cases := map[string]string{
		"5511999999999":                "5511999999999@s.whatsapp.net",
		"+5511999999999":               "5511999999999@s.whatsapp.net",
		"5511999999999@c.us":           "5511999999999@s.whatsapp.net",
		"5511999999999@s.whatsapp.net": "5511999999999@s.whatsapp.net",
		"120363025246125888@g.us":      "120363025246125888@g.us",
		"120363025246125888":           "120363025246125888@g.us",
		"5511999999999-1600000000":     "5511999999999-1600000000@g.us",
		"status@broadcast":             "status@broadcast",
	}
	for in, want := range cases {
		jid, err := ParseChatID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, jid.String(), in)
	}

	for _, bad := range []string{"", "  ", "@c.us", "123@"} {
		_, err := ParseChatID(bad)
		assert.ErrorIs(t, err, ErrInvalidChatID, bad)
	}
}

func TestIsStatusChat(t *testing.T) {
	assert.True(t, IsStatusChat(types.StatusBroadcastJID))
	assert.True(t, IsStatusChat(types.NewJID("123", types.BroadcastServer)))
	assert.False(t, IsStatusChat(types.NewJID("123", types.DefaultUserServer)))
}

func TestEncodeQR(t *testing.T) {
	qr, err := EncodeQR("2@abc,def,ghi")
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(qr, "data:"))

	raw, err := base64.StdEncoding.DecodeString(qr)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	assert.NoError(t, err)
}

func TestNormalizeDatastore(t *testing.T) {
	assert.Equal(t, "pgx", normalizeDatastoreDriver("PostgreSQL"))
	assert.Equal(t, "sqlite3", normalizeDatastoreDriver(""))
	assert.Equal(t, "sqlite3", normalizeDatastoreDriver("sqlite"))

	dsn := normalizeDatastoreDSN("pgx", "postgres://u:p@localhost/db?sslmode=disable")
	assert.Equal(t, "postgres://u:p@localhost/db?sslmode=disable&default_query_exec_mode=simple_protocol&statement_cache_capacity=0", dsn)
	assert.Equal(t, DefaultDatastoreURI, normalizeDatastoreDSN("sqlite3", DefaultDatastoreURI))
}

func TestEnsureSQLiteDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	require.NoError(t, ensureSQLiteDir("file:"+filepath.Join(dir, "wa.db")+"?_foreign_keys=on"))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.NoError(t, ensureSQLiteDir("file::memory:?cache=shared"))
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

func TestFetchMedia_HTTP(t *testing.T) {
	pic := testPNG(t, 16, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pic.png":
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(pic)
		case "/untyped":
			_, _ = w.Write(pic)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write(pic)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()

	file, err := FetchMedia(ctx, srv.Client(), srv.URL+"/pic.png", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, pic, file.Data)
	assert.Equal(t, "image/png", file.MimeType)
	assert.Equal(t, "pic.png", file.FileName)

	file, err = FetchMedia(ctx, srv.Client(), srv.URL+"/untyped", 1<<20)
	require.NoError(t, err)
	assert.Equal(t, "image/png", file.MimeType)

	_, err = FetchMedia(ctx, srv.Client(), srv.URL+"/missing", 1<<20)
	assert.ErrorIs(t, err, ErrMediaFetch)

	_, err = FetchMedia(ctx, srv.Client(), srv.URL+"/pic.png", 10)
	assert.ErrorIs(t, err, ErrMediaFetch)

	timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = FetchMedia(timeoutCtx, srv.Client(), srv.URL+"/slow", 1<<20)
	assert.ErrorIs(t, err, ErrMediaFetch)
}

func TestFetchMedia_DataURIAndFile(t *testing.T) {
	ctx := context.Background()

	file, err := FetchMedia(ctx, nil, "data:text/plain;base64,"+base64.StdEncoding.EncodeToString([]byte("hello")), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), file.Data)
	assert.Equal(t, "text/plain", file.MimeType)

	file, err = FetchMedia(ctx, nil, "data:,hello%20world", 0)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(file.Data))

	_, err = FetchMedia(ctx, nil, "data:text/plain;base64", 0)
	assert.ErrorIs(t, err, ErrMediaFetch)

	path := filepath.Join(t.TempDir(), "catalog.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))
	file, err = FetchMedia(ctx, nil, "file://"+path, 0)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.MimeType)
	assert.Equal(t, "catalog.pdf", file.FileName)

	_, err = FetchMedia(ctx, nil, path, 4)
	assert.ErrorIs(t, err, ErrMediaFetch)

	_, err = FetchMedia(ctx, nil, filepath.Join(t.TempDir(), "nope.png"), 0)
	assert.True(t, errors.Is(err, ErrMediaFetch))

	_, err = FetchMedia(ctx, nil, "  ", 0)
	assert.ErrorIs(t, err, ErrMediaFetch)
}

func TestPrepareImage(t *testing.T) {
	img, err := prepareImage(testPNG(t, 300, 200), "image/png", true, false)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.MimeType)
	require.NotEmpty(t, img.Thumbnail)
	// JPEG SOI marker
	assert.Equal(t, []byte{0xFF, 0xD8}, img.Thumbnail[:2])

	_, err = prepareImage([]byte("not an image"), "image/png", true, false)
	assert.Error(t, err)
}

func TestPrepareImage_Compression(t *testing.T) {
	img, err := prepareImage(testPNG(t, 1200, 10), "image/png", false, true)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", img.MimeType)
}

func TestIncomingMessage(t *testing.T) {
	chat := types.NewJID("5511999999999", types.DefaultUserServer)
	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: chat, Sender: chat},
			ID:            "ABC",
			PushName:      "Ana",
		},
		Message: &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{Text: proto.String("1")}},
	}

	msg, ok := incomingMessage(evt)
	require.True(t, ok)
	assert.Equal(t, "5511999999999@s.whatsapp.net", msg.ChatID)
	assert.Equal(t, "1", msg.Text)
	assert.Equal(t, "ABC", msg.MessageID)
	assert.False(t, msg.IsStatusUpdate)
	assert.False(t, msg.IsGroup)
	assert.Empty(t, msg.AltChatID)

	lid := types.NewJID("98765", types.HiddenUserServer)
	evt.Info.MessageSource = types.MessageSource{Chat: lid, Sender: lid, SenderAlt: chat}
	msg, ok = incomingMessage(evt)
	require.True(t, ok)
	assert.Equal(t, "98765@lid", msg.ChatID)
	assert.Equal(t, "5511999999999@s.whatsapp.net", msg.AltChatID)

	evt.Info.MessageSource = types.MessageSource{Chat: lid, Sender: chat, IsFromMe: true, RecipientAlt: chat}
	msg, ok = incomingMessage(evt)
	require.True(t, ok)
	assert.Equal(t, "5511999999999@s.whatsapp.net", msg.AltChatID)

	group := types.NewJID("120363000000", types.GroupServer)
	evt.Info.MessageSource = types.MessageSource{Chat: group, Sender: chat}
	msg, ok = incomingMessage(evt)
	require.True(t, ok)
	assert.True(t, msg.IsGroup)
	assert.Empty(t, msg.AltChatID)

	evt.Info.Chat = types.StatusBroadcastJID
	msg, ok = incomingMessage(evt)
	require.True(t, ok)
	assert.True(t, msg.IsStatusUpdate)

	evt.Message = &waE2E.Message{ReactionMessage: &waE2E.ReactionMessage{Text: proto.String("👍")}}
	_, ok = incomingMessage(evt)
	assert.False(t, ok)

	evt.Message = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{Caption: proto.String("#menu")}}
	msg, ok = incomingMessage(evt)
	require.True(t, ok)
	assert.Equal(t, "#menu", msg.Text)
}

func TestLoggerBridge(t *testing.T) {
	l := NewLogger("Client").Sub("Socket")
	bridged, ok := l.(*waLogger)
	require.True(t, ok)
	assert.Equal(t, "Client/Socket", bridged.entry.Data["module"])

	buf := new(bytes.Buffer)
	base := logrus.New()
	base.Out = buf
	base.Formatter = &logrus.TextFormatter{DisableTimestamp: true, DisableColors: true}
	base.Level = logrus.DebugLevel
	bridged.entry = base.WithField("module", "Client/Socket")
	bridged.Warnf("frame %d dropped", 7)
	assert.Contains(t, buf.String(), "frame 7 dropped")
	assert.Contains(t, buf.String(), "module=Client/Socket")
}

func TestGatewayStatus_Disconnected(t *testing.T) {
	g := New(nil, Config{MediaTimeout: time.Second}, Hooks{})
	assert.Equal(t, Status{}, g.Status())
	assert.False(t, g.IsConnected())

	g.setQR("QRDATA")
	status := g.Status()
	require.NotNil(t, status.QRCode)
	assert.Equal(t, "QRDATA", *status.QRCode)
	assert.False(t, status.Connected)

	err := g.SendText(context.Background(), "5511999999999", "hi")
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = g.Contacts(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = g.Groups(context.Background())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestVersionRefresher_Throttled(t *testing.T) {
	r := NewVersionRefresher(time.Hour)
	now := time.Now()
	r.lastRefreshed = &now

	status, refreshed, err := r.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, refreshed)
	assert.NotEmpty(t, status.CurrentVersion)
	require.NotNil(t, status.LastRefreshed)
}
