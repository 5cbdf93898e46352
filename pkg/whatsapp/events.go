package whatsapp

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	qrCode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

// EncodeQR renders a pairing code as a base64 PNG without a data URI prefix.
func EncodeQR(code string) (string, error) {
	png, err := qrCode.Encode(code, qrCode.Medium, 256)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

func (g *Gateway) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Message:
		msg, ok := incomingMessage(e)
		if !ok {
			return
		}
		if g.hooks.OnMessage != nil {
			g.hooks.OnMessage(msg)
		}

	case *events.Connected:
		g.setQR("")
		log.Gateway("event").Info("WhatsApp client connected")
		if g.hooks.OnConnected != nil {
			g.hooks.OnConnected()
		}

	case *events.PairSuccess:
		log.Gateway("event").Info("WhatsApp device paired as " + log.MaskChatID(e.ID.String()))

	case *events.Disconnected:
		log.Gateway("event").Warn("WhatsApp client disconnected")
		if g.hooks.OnDisconnected != nil {
			g.hooks.OnDisconnected("disconnected")
		}

	case *events.StreamReplaced:
		log.Gateway("event").Warn("WhatsApp stream replaced by another connection")
		if g.hooks.OnDisconnected != nil {
			g.hooks.OnDisconnected("stream replaced")
		}

	case *events.LoggedOut:
		reason := e.Reason.String()
		log.Gateway("event").Warn("WhatsApp session logged out: " + reason)
		if g.hooks.OnLoggedOut != nil {
			g.hooks.OnLoggedOut(reason)
		}
		go g.afterLogout()

	case *events.ConnectFailure:
		g.failAuth(fmt.Sprintf("connect failure: %s %s", e.Reason, e.Message))

	case *events.TemporaryBan:
		g.failAuth("temporary ban: " + e.String())

	case *events.KeepAliveTimeout:
		log.Gateway("event").Warn(fmt.Sprintf("WhatsApp keepalive timeout, errors=%d, lastSuccess=%s", e.ErrorCount, e.LastSuccess.Format(time.RFC3339)))
	}
}

// afterLogout drops the revoked credentials and starts pairing again.
func (g *Gateway) afterLogout() {
	if client := g.current(); client != nil && client.Store.ID != nil {
		ctx, cancel := context.WithTimeout(context.Background(), storeCleanupTimeout)
		if err := client.Store.Delete(ctx); err != nil {
			log.Gateway("logout").WithError(err).Debug("Device credentials already removed")
		}
		cancel()
	}
	g.reinit("logged out")
}

// incomingMessage maps a message event; ok is false for events that carry no
// user content such as reactions, revokes or poll votes.
func incomingMessage(e *events.Message) (IncomingMessage, bool) {
	if e == nil || e.Message == nil {
		return IncomingMessage{}, false
	}
	m := e.Message
	if m.GetProtocolMessage() != nil || m.GetReactionMessage() != nil ||
		m.GetPollUpdateMessage() != nil || m.GetEncReactionMessage() != nil {
		return IncomingMessage{}, false
	}

	return IncomingMessage{
		ChatID:         e.Info.Chat.String(),
		AltChatID:      altChatID(e.Info.MessageSource),
		MessageID:      e.Info.ID,
		SenderID:       e.Info.Sender.String(),
		PushName:       e.Info.PushName,
		Text:           messageText(m),
		IsFromSelf:     e.Info.IsFromMe,
		IsStatusUpdate: IsStatusChat(e.Info.Chat),
		IsGroup:        e.Info.Chat.Server == types.GroupServer,
		Timestamp:      e.Info.Timestamp,
	}, true
}

// altChatID returns the phone number JID of a one to one chat addressed by
// LID. For own messages the other party is the recipient.
func altChatID(src types.MessageSource) string {
	if src.Chat.Server != types.HiddenUserServer {
		return ""
	}
	alt := src.SenderAlt
	if src.IsFromMe {
		alt = src.RecipientAlt
	}
	if alt.IsEmpty() {
		return ""
	}
	return alt.ToNonAD().String()
}

func messageText(m *waE2E.Message) string {
	switch {
	case m.GetConversation() != "":
		return m.GetConversation()
	case m.GetExtendedTextMessage().GetText() != "":
		return m.GetExtendedTextMessage().GetText()
	case m.GetImageMessage().GetCaption() != "":
		return m.GetImageMessage().GetCaption()
	case m.GetVideoMessage().GetCaption() != "":
		return m.GetVideoMessage().GetCaption()
	case m.GetDocumentMessage().GetCaption() != "":
		return m.GetDocumentMessage().GetCaption()
	}
	return ""
}
