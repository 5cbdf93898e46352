package flow

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultEntryID            = "START"
	DefaultResetToken         = "#MENU"
	DefaultPingReply          = "pong"
	DefaultConfigErrorMessage = "Sorry, something went wrong on our side. Let's start over."
	DefaultMediaFailedNotice  = "(We could not deliver the attachment for this option.)"
)

//go:embed default_flow.yaml
var defaultFlow []byte

// Document is the declarative form of a flow as read from YAML.
type Document struct {
	Entry              string            `yaml:"entry"`
	End                string            `yaml:"end,omitempty"`
	ResetToken         string            `yaml:"reset_token,omitempty"`
	PingToken          string            `yaml:"ping_token,omitempty"`
	PingReply          string            `yaml:"ping_reply,omitempty"`
	ConfigErrorMessage string            `yaml:"config_error_message,omitempty"`
	MediaFailedNotice  string            `yaml:"media_failed_notice,omitempty"`
	States             map[string]*State `yaml:"states"`
}

// Default returns the flow embedded in the binary.
func Default() (*Definition, error) {
	return Parse(defaultFlow)
}

// LoadFile reads and validates a YAML flow document from disk.
func LoadFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read flow %s: %w", path, err)
	}
	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load flow %s: %w", path, err)
	}
	return def, nil
}

// Parse decodes a YAML flow document. Unknown fields are rejected so typos in
// hand-written flows fail at startup.
func Parse(data []byte) (*Definition, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode flow: %w", err)
	}
	return New(doc)
}

// New validates a document and builds the immutable Definition. Every
// integrity problem is reported in a single *ValidationError.
func New(doc Document) (*Definition, error) {
	def := &Definition{
		entry:              strings.TrimSpace(doc.Entry),
		end:                strings.TrimSpace(doc.End),
		resetToken:         Normalize(doc.ResetToken),
		pingToken:          Normalize(doc.PingToken),
		pingReply:          doc.PingReply,
		configErrorMessage: doc.ConfigErrorMessage,
		mediaFailedNotice:  doc.MediaFailedNotice,
		states:             make(map[string]*State, len(doc.States)),
	}
	if def.entry == "" {
		def.entry = DefaultEntryID
	}
	if def.resetToken == "" {
		def.resetToken = DefaultResetToken
	}
	if def.pingToken != "" && def.pingReply == "" {
		def.pingReply = DefaultPingReply
	}
	if def.configErrorMessage == "" {
		def.configErrorMessage = DefaultConfigErrorMessage
	}
	if def.mediaFailedNotice == "" {
		def.mediaFailedNotice = DefaultMediaFailedNotice
	}

	verr := &ValidationError{}
	for id, st := range doc.States {
		id = strings.TrimSpace(id)
		if id == "" {
			verr.add("state with empty id")
			continue
		}
		if st == nil {
			st = &State{}
		}
		built := &State{
			ID:       id,
			Message:  st.Message,
			Fallback: st.Fallback,
			Final:    st.Final,
			Media:    st.Media,
		}
		if len(st.Options) > 0 {
			built.Options = make(map[string]Transition, len(st.Options))
			for raw, tr := range st.Options {
				token := Normalize(raw)
				if token == "" {
					verr.add("state %s: option with empty token", id)
					continue
				}
				if _, dup := built.Options[token]; dup {
					verr.add("state %s: option %q collides with another option after normalization", id, raw)
					continue
				}
				tr.Target = strings.TrimSpace(tr.Target)
				built.Options[token] = tr
			}
		}
		def.states[id] = built
	}

	validate(def, verr)
	if verr.has() {
		return nil, verr
	}
	return def, nil
}
