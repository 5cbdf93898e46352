package validation

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/forPelevin/gomoji"
	"github.com/rivo/uniseg"
)

// MaxMessageLength is the longest text body accepted by /api/send-message.
const MaxMessageLength = 65536

var (
	phonePattern = regexp.MustCompile(`^[1-9][0-9]{5,15}$`)
)

// ValidatePhone ensures international format (no leading 0, digits only, length 6-16).
func ValidatePhone(phone string) error {
	trimmed := strings.TrimSpace(phone)
	if trimmed == "" {
		return errors.New("phone number cannot be empty")
	}
	if strings.HasPrefix(trimmed, "+") {
		trimmed = trimmed[1:]
	}
	if strings.HasPrefix(trimmed, "0") {
		return errors.New("phone number must be in international format without leading 0")
	}
	if !phonePattern.MatchString(trimmed) {
		return errors.New("phone number must be digits only and at least 6 characters")
	}
	return nil
}

// ValidateRecipient accepts a bare phone number or an already suffixed chat
// id such as 5511999999999@c.us or 1203630@g.us.
func ValidateRecipient(number string) error {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return errors.New("number is required")
	}
	user, server, suffixed := strings.Cut(trimmed, "@")
	if !suffixed {
		return ValidatePhone(trimmed)
	}
	if user == "" || server == "" {
		return errors.New("number must be a phone number or a chat id")
	}
	return nil
}

// ValidateMessage ensures a non-blank text body within MaxMessageLength runes.
func ValidateMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("message is required")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return errors.New("message is too long")
	}
	return nil
}

// ValidateReaction ensures the value is a single emoji.
func ValidateReaction(emoji string) error {
	if emoji == "" {
		return errors.New("reaction cannot be empty")
	}
	if !gomoji.ContainsEmoji(emoji) || uniseg.GraphemeClusterCount(emoji) != 1 {
		return errors.New("reaction must be exactly one emoji")
	}
	return nil
}

// ValidateURL ensures a non-empty valid URL when provided.
func ValidateURL(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return errors.New("url cannot be empty")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return errors.New("url must be valid")
	}
	return nil
}
