package model

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrRecipientRequired is returned for an empty recipient.
	ErrRecipientRequired = errors.New("recipient is required")
	// ErrInvalidRecipient is returned for anything that is not a phone
	// number, an email address or a group chat GUID.
	ErrInvalidRecipient = errors.New("enter a valid phone number or email")
)

var (
	phonePattern     = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)
	emailPattern     = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	groupGUIDPattern = regexp.MustCompile(`^(iMessage|SMS|RCS);[+-];chat\d+$`)
	phoneFormatting  = regexp.MustCompile(`[\s\-()]`)
)

// NormalizeRecipient validates a send recipient and returns it in the form
// the gateway accepts: phone numbers lose their formatting, emails and
// group GUIDs are kept as typed (trimmed).
func NormalizeRecipient(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ErrRecipientRequired
	}
	if phone := phoneFormatting.ReplaceAllString(s, ""); phonePattern.MatchString(phone) {
		return phone, nil
	}
	if emailPattern.MatchString(s) || groupGUIDPattern.MatchString(s) {
		return s, nil
	}
	return "", ErrInvalidRecipient
}
