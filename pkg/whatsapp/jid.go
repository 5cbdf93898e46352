package whatsapp

import (
	"errors"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// Legacy server suffixes still used by clients of the HTTP API.
const (
	legacyUserServer  = "c.us"
	legacyGroupServer = "g.us"
)

var ErrInvalidChatID = errors.New("invalid chat id")

// ParseChatID turns a phone number or chat id into a JID. Bare numbers get the
// user server appended; the legacy c.us suffix maps to the user server.
func ParseChatID(id string) (types.JID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.EmptyJID, ErrInvalidChatID
	}

	if user, server, ok := strings.Cut(id, "@"); ok {
		user = strings.TrimPrefix(user, "+")
		if user == "" || server == "" {
			return types.EmptyJID, ErrInvalidChatID
		}
		switch server {
		case legacyUserServer:
			return types.NewJID(user, types.DefaultUserServer), nil
		case legacyGroupServer:
			return types.NewJID(user, types.GroupServer), nil
		}
		jid, err := types.ParseJID(user + "@" + server)
		if err != nil {
			return types.EmptyJID, ErrInvalidChatID
		}
		return jid, nil
	}

	id = strings.TrimPrefix(id, "+")
	if strings.ContainsRune(id, '-') || len(id) >= 18 {
		return types.NewJID(id, types.GroupServer), nil
	}
	return types.NewJID(id, types.DefaultUserServer), nil
}

// IsStatusChat reports whether jid is the status broadcast feed or another
// broadcast list.
func IsStatusChat(jid types.JID) bool {
	return jid == types.StatusBroadcastJID || jid.Server == types.BroadcastServer
}
