package webhook

import (
	"time"
)

type EventType string

const (
	EventPairingQR              EventType = "pairing.qr"
	EventConnectionConnected    EventType = "connection.connected"
	EventConnectionDisconnected EventType = "connection.disconnected"
	EventConnectionAuthFailure  EventType = "connection.auth_failure"
	EventConnectionLoggedOut    EventType = "connection.logged_out"
	EventChatbotTransition      EventType = "chatbot.transition"
)

// KnownEvents lists every event the service publishes.
var KnownEvents = []EventType{
	EventPairingQR,
	EventConnectionConnected,
	EventConnectionDisconnected,
	EventConnectionAuthFailure,
	EventConnectionLoggedOut,
	EventChatbotTransition,
}

type DeliveryStatus string

const (
	DeliverySuccess DeliveryStatus = "success"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryDropped DeliveryStatus = "dropped"
)

type Event struct {
	EventType EventType      `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

type DeliveryLog struct {
	URL          string         `json:"url"`
	EventType    EventType      `json:"event_type"`
	Status       DeliveryStatus `json:"status"`
	AttemptCount int            `json:"attempt_count"`
	LastError    string         `json:"last_error,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
