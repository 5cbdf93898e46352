package flow

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidFlow   = errors.New("invalid flow definition")
	ErrStateNotFound = errors.New("flow state not found")
)

// MediaKind names the attachment types the gateway knows how to send.
type MediaKind string

const (
	MediaImage    MediaKind = "image"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaImage, MediaVideo, MediaAudio, MediaDocument:
		return true
	}
	return false
}

// Media is an attachment sent before a state's message when the state is
// entered through a matched option. Source is an http(s) URL, a data URI or a
// local file path.
type Media struct {
	Kind     MediaKind `yaml:"kind" json:"kind"`
	Source   string    `yaml:"source" json:"source"`
	Caption  string    `yaml:"caption,omitempty" json:"caption,omitempty"`
	MimeType string    `yaml:"mimetype,omitempty" json:"mimetype,omitempty"`
	FileName string    `yaml:"filename,omitempty" json:"filename,omitempty"`
}

type Transition struct {
	Target string `yaml:"target" json:"target"`
	Label  string `yaml:"label,omitempty" json:"label,omitempty"`
}

type State struct {
	ID       string                `yaml:"-" json:"id"`
	Message  string                `yaml:"message" json:"message"`
	Fallback string                `yaml:"fallback,omitempty" json:"fallback,omitempty"`
	Final    bool                  `yaml:"final,omitempty" json:"final"`
	Options  map[string]Transition `yaml:"options,omitempty" json:"options,omitempty"`
	Media    *Media                `yaml:"media,omitempty" json:"media,omitempty"`
}

// Option returns the transition registered for an already normalized token.
func (s *State) Option(token string) (Transition, bool) {
	t, ok := s.Options[token]
	return t, ok
}

// OptionKeys returns the option tokens in a stable order.
func (s *State) OptionKeys() []string {
	keys := make([]string, 0, len(s.Options))
	for k := range s.Options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Definition is the validated, read-only dialogue graph. It is safe for
// concurrent use once returned by Load or New.
type Definition struct {
	entry              string
	end                string
	resetToken         string
	pingToken          string
	pingReply          string
	configErrorMessage string
	mediaFailedNotice  string
	states             map[string]*State
}

func (d *Definition) EntryID() string { return d.entry }

// EndID returns the distinguished end state, or "" when the flow has none.
func (d *Definition) EndID() string { return d.end }

func (d *Definition) ResetToken() string { return d.resetToken }

// PingToken returns the liveness command, or "" when disabled.
func (d *Definition) PingToken() string { return d.pingToken }

func (d *Definition) PingReply() string { return d.pingReply }

func (d *Definition) ConfigErrorMessage() string { return d.configErrorMessage }

func (d *Definition) MediaFailedNotice() string { return d.mediaFailedNotice }

// Get looks a state up by id.
func (d *Definition) Get(id string) (*State, error) {
	st, ok := d.states[id]
	if !ok {
		return nil, ErrStateNotFound
	}
	return st, nil
}

// Entry returns the entry state. It always exists in a validated definition.
func (d *Definition) Entry() *State {
	return d.states[d.entry]
}

// StateIDs returns every state id in a stable order.
func (d *Definition) StateIDs() []string {
	ids := make([]string, 0, len(d.states))
	for id := range d.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d *Definition) Len() int { return len(d.states) }

// Normalize maps raw chat input to the token space used for matching
// options and commands.
func Normalize(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}
