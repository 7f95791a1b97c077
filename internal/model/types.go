package model

import (
	"strings"
	"time"
)

// DeliveryStatus tracks whether a message has been confirmed by the gateway.
type DeliveryStatus string

const (
	Confirmed DeliveryStatus = "confirmed"
	Pending   DeliveryStatus = "pending"
	Failed    DeliveryStatus = "failed"
)

// Contact is a resolved identity for a phone number or email handle.
type Contact struct {
	Handle     string
	Name       string
	GivenName  string
	FamilyName string
	Nickname   string
	Initials   string
	HasImage   bool
	ImageURL   string
}

// DisplayName returns the best human name for the contact, or the handle.
func (c *Contact) DisplayName() string {
	if c == nil {
		return ""
	}
	if c.Name != "" {
		return c.Name
	}
	if c.Nickname != "" {
		return c.Nickname
	}
	return c.Handle
}

// Participant is a member of a group chat.
type Participant struct {
	Handle  string
	Contact *Contact
}

// Attachment is file metadata attached to a message.
type Attachment struct {
	RowID        int64
	GUID         string
	MimeType     string
	Filename     string
	TotalBytes   int64
	URL          string
	ThumbnailURL string
	StreamURL    string
}

var (
	imageExts = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".heic", ".heif"}
	videoExts = []string{".mp4", ".mov", ".avi", ".mkv"}
)

// IsImage reports whether the attachment is an image, by MIME type or extension.
func (a Attachment) IsImage() bool {
	if a.MimeType != "" {
		return strings.HasPrefix(a.MimeType, "image/")
	}
	return hasExt(a.Filename, imageExts)
}

// IsVideo reports whether the attachment is a video, by MIME type or extension.
func (a Attachment) IsVideo() bool {
	if a.MimeType != "" {
		return strings.HasPrefix(a.MimeType, "video/")
	}
	return hasExt(a.Filename, videoExts)
}

// Placeholder returns the inline text shown in place of the attachment.
func (a Attachment) Placeholder() string {
	switch {
	case a.IsImage():
		return "[Image: " + orDefault(a.Filename, "image") + "]"
	case a.IsVideo():
		return "[Video: " + orDefault(a.Filename, "video") + "]"
	default:
		return "[File: " + orDefault(a.Filename, "attachment") + "]"
	}
}

func hasExt(name string, exts []string) bool {
	lower := strings.ToLower(name)
	for _, ext := range exts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Message is a single entry of a conversation timeline. Confirmed messages
// carry the gateway rowid; pending placeholders carry a negative synthetic id.
type Message struct {
	RowID          int64
	GUID           string
	ChatID         int64
	Text           string
	Timestamp      time.Time
	IsFromMe       bool
	HandleID       string
	TapbackType    string
	AssociatedGUID string
	Attachments    []Attachment
	Contact        *Contact
	Status         DeliveryStatus
}

// IsTapback reports whether the message is a reaction to another message.
func (m Message) IsTapback() bool {
	return m.TapbackType != ""
}

// TargetGUID returns the GUID of the message a tapback reacts to, with the
// part-index ("p:0/") and balloon ("bp:") prefixes removed.
func (m Message) TargetGUID() string {
	return StripGUIDPrefix(m.AssociatedGUID)
}

// StripGUIDPrefix removes the known reference prefixes from an associated GUID.
func StripGUIDPrefix(guid string) string {
	if rest, ok := strings.CutPrefix(guid, "bp:"); ok {
		return rest
	}
	if strings.HasPrefix(guid, "p:") {
		if _, after, ok := strings.Cut(guid, "/"); ok {
			return after
		}
	}
	return guid
}

// DisplayText returns the text with attachment placeholders appended.
func (m Message) DisplayText() string {
	parts := make([]string, 0, len(m.Attachments)+1)
	if m.Text != "" {
		parts = append(parts, m.Text)
	}
	for _, a := range m.Attachments {
		parts = append(parts, a.Placeholder())
	}
	if len(parts) == 0 {
		return "[Empty message]"
	}
	return strings.Join(parts, "\n")
}

// SenderName returns "Me" for self-authored messages, otherwise the resolved
// contact name or the raw handle.
func (m Message) SenderName() string {
	if m.IsFromMe {
		return "Me"
	}
	if name := m.Contact.DisplayName(); name != "" {
		return name
	}
	if m.HandleID != "" {
		return m.HandleID
	}
	return "Unknown"
}

// Chat is a conversation as listed by the gateway.
type Chat struct {
	RowID               int64
	GUID                string
	DisplayName         string
	Identifier          string
	LastMessageTime     time.Time
	LastMessageText     string
	LastMessageIsFromMe bool
	Participants        []string
	ParticipantContacts []Participant
	Contact             *Contact
	Unread              int
}

// IsGroup reports whether the chat has more than one other participant.
func (c Chat) IsGroup() bool {
	return len(c.Participants) > 1
}

// Recipient returns the handle used to address sends to this chat. Group
// chats are addressed by their full GUID ("iMessage;+;chat123"); the bare
// identifier is rejected by the gateway.
func (c Chat) Recipient() string {
	if c.IsGroup() && c.GUID != "" {
		return c.GUID
	}
	if c.Identifier != "" {
		return c.Identifier
	}
	return c.GUID
}
