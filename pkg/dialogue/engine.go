package dialogue

import (
	"context"
	"fmt"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/session"
)

// Outcome labels which branch of the step produced a reply.
type Outcome string

const (
	OutcomeReset       Outcome = "reset"
	OutcomePing        Outcome = "ping"
	OutcomeGreeting    Outcome = "greeting"
	OutcomeEndBounce   Outcome = "end_bounce"
	OutcomeFinal       Outcome = "final"
	OutcomeTransition  Outcome = "transition"
	OutcomeFallback    Outcome = "fallback"
	OutcomeConfigError Outcome = "config_error"
)

type PayloadKind string

const (
	PayloadText  PayloadKind = "text"
	PayloadMedia PayloadKind = "media"
)

// Payload is one outbound send. Media payloads carry the attachment and use
// its caption as their own message.
type Payload struct {
	Kind  PayloadKind
	Text  string
	Media *flow.Media
}

// Reply is the result of one step: zero or one media payload followed by
// exactly one text payload.
type Reply struct {
	ChatID   string
	From     string
	StateID  string
	Outcome  Outcome
	Payloads []Payload

	// MediaFailedNotice prefixes the text payload when the media payload
	// could not be delivered.
	MediaFailedNotice string
}

// Text returns the text payload.
func (r Reply) Text() string {
	for _, p := range r.Payloads {
		if p.Kind == PayloadText {
			return p.Text
		}
	}
	return ""
}

// Media returns the media payload, if any.
func (r Reply) Media() *flow.Media {
	for _, p := range r.Payloads {
		if p.Kind == PayloadMedia {
			return p.Media
		}
	}
	return nil
}

// Transitioned reports whether the step moved the chat to another state.
func (r Reply) Transitioned() bool {
	return r.From != r.StateID
}

// Engine interprets chat input against a flow. It holds no transport and no
// state of its own beyond the session manager.
type Engine struct {
	def      *flow.Definition
	sessions *session.Manager
}

func New(def *flow.Definition, sessions *session.Manager) *Engine {
	return &Engine{def: def, sessions: sessions}
}

func (e *Engine) Definition() *flow.Definition {
	return e.def
}

func (e *Engine) Sessions() *session.Manager {
	return e.sessions
}

// Step processes one inbound text for chatID. The read-modify-write of the
// chat's state happens under the chat's lock. Errors are only returned when
// the session store fails; flow problems are answered in-chat.
func (e *Engine) Step(ctx context.Context, chatID string, raw string) (Reply, error) {
	var reply Reply
	err := e.sessions.WithLock(ctx, chatID, func(ctx context.Context) error {
		var err error
		reply, err = e.step(ctx, chatID, raw)
		return err
	})
	if err != nil {
		return Reply{}, err
	}
	return reply, nil
}

func (e *Engine) step(ctx context.Context, chatID string, raw string) (Reply, error) {
	token := flow.Normalize(raw)
	if token == "" {
		token = e.def.ResetToken()
	}

	currentID, seen, err := e.sessions.State(ctx, chatID)
	if err != nil {
		return Reply{}, err
	}
	reply := Reply{
		ChatID:            chatID,
		From:              currentID,
		StateID:           currentID,
		MediaFailedNotice: e.def.MediaFailedNotice(),
	}

	if token == e.def.ResetToken() {
		return e.toEntry(ctx, reply, OutcomeReset)
	}

	// The end state returns to the entry on any input, command tokens included.
	if end := e.def.EndID(); end != "" && currentID == end {
		return e.toEntry(ctx, reply, OutcomeEndBounce)
	}

	if ping := e.def.PingToken(); ping != "" && token == ping {
		reply.Outcome = OutcomePing
		reply.Payloads = text(e.def.PingReply())
		return reply, nil
	}

	current, err := e.def.Get(currentID)
	if err != nil {
		log.Chat(chatID, "step").WithField("state", currentID).Warn("session points to an unknown state, resetting")
		return e.configError(ctx, reply)
	}

	if current.Final {
		reply.Outcome = OutcomeFinal
		reply.Payloads = text(current.Fallback)
		return reply, nil
	}

	tr, ok := current.Option(token)
	if !ok {
		if !seen {
			// First contact: greet with the entry menu and open the session.
			if err := e.sessions.SetState(ctx, chatID, current.ID); err != nil {
				return Reply{}, err
			}
			reply.Outcome = OutcomeGreeting
			reply.Payloads = text(current.Message)
			return reply, nil
		}
		reply.Outcome = OutcomeFallback
		reply.Payloads = text(current.Fallback + current.Message)
		return reply, nil
	}

	next, err := e.def.Get(tr.Target)
	if err != nil {
		log.Chat(chatID, "step").WithField("state", current.ID).WithField("target", tr.Target).Warn("option targets an unknown state, resetting")
		return e.configError(ctx, reply)
	}

	if err := e.sessions.SetState(ctx, chatID, next.ID); err != nil {
		return Reply{}, err
	}
	reply.StateID = next.ID
	reply.Outcome = OutcomeTransition
	if next.Media != nil {
		reply.Payloads = append(reply.Payloads, Payload{Kind: PayloadMedia, Text: next.Media.Caption, Media: next.Media})
	}
	reply.Payloads = append(reply.Payloads, Payload{Kind: PayloadText, Text: next.Message})
	return reply, nil
}

func (e *Engine) toEntry(ctx context.Context, reply Reply, outcome Outcome) (Reply, error) {
	if err := e.sessions.Reset(ctx, reply.ChatID); err != nil {
		return Reply{}, err
	}
	reply.StateID = e.def.EntryID()
	reply.Outcome = outcome
	reply.Payloads = text(e.def.Entry().Message)
	return reply, nil
}

func (e *Engine) configError(ctx context.Context, reply Reply) (Reply, error) {
	if err := e.sessions.Reset(ctx, reply.ChatID); err != nil {
		return Reply{}, fmt.Errorf("recover session: %w", err)
	}
	reply.StateID = e.def.EntryID()
	reply.Outcome = OutcomeConfigError
	reply.Payloads = text(e.def.ConfigErrorMessage())
	return reply, nil
}

func text(s string) []Payload {
	return []Payload{{Kind: PayloadText, Text: s}}
}
