package api

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/matheus3301/msgview/internal/model"
)

// Wire types mirror the gateway's JSON. Optional server fields are pointers
// or zero values; conversion to model types happens in the *FromWire helpers.

type contactJSON struct {
	Handle     string  `json:"handle"`
	Name       *string `json:"name"`
	GivenName  *string `json:"given_name"`
	FamilyName *string `json:"family_name"`
	Nickname   *string `json:"nickname"`
	Initials   *string `json:"initials"`
	HasImage   bool    `json:"has_image"`
	ImageURL   *string `json:"image_url"`
}

type participantJSON struct {
	Handle  string       `json:"handle"`
	Contact *contactJSON `json:"contact"`
}

type attachmentJSON struct {
	RowID        int64   `json:"rowid"`
	GUID         string  `json:"guid"`
	MimeType     *string `json:"mime_type"`
	Filename     *string `json:"filename"`
	TotalBytes   int64   `json:"total_bytes"`
	URL          string  `json:"url"`
	ThumbnailURL *string `json:"thumbnail_url"`
	StreamURL    *string `json:"stream_url"`
}

// MessageJSON is a message as serialized by the gateway, on both the REST
// endpoints and the websocket.
type MessageJSON struct {
	RowID          int64            `json:"rowid"`
	GUID           string           `json:"guid"`
	Text           *string          `json:"text"`
	Timestamp      *string          `json:"timestamp"`
	IsFromMe       bool             `json:"is_from_me"`
	HandleID       *string          `json:"handle_id"`
	ChatID         *int64           `json:"chat_id"`
	TapbackType    *string          `json:"tapback_type"`
	AssociatedGUID *string          `json:"associated_guid"`
	Attachments    []attachmentJSON `json:"attachments"`
	Contact        *contactJSON     `json:"contact"`
}

type chatJSON struct {
	RowID               int64             `json:"rowid"`
	GUID                string            `json:"guid"`
	DisplayName         *string           `json:"display_name"`
	Identifier          *string           `json:"identifier"`
	LastMessageTime     *string           `json:"last_message_time"`
	LastMessageText     *string           `json:"last_message_text"`
	LastMessageIsFromMe bool              `json:"last_message_is_from_me"`
	Participants        []string          `json:"participants"`
	ParticipantContacts []participantJSON `json:"participant_contacts"`
	Contact             *contactJSON      `json:"contact"`
}

type sendRequest struct {
	Recipient string `json:"recipient"`
	Message   string `json:"message"`
}

type sendResponse struct {
	Success bool    `json:"success"`
	Error   *string `json:"error"`
}

type searchResponse struct {
	Messages []MessageJSON `json:"messages"`
	Total    int           `json:"total"`
	HasMore  bool          `json:"has_more"`
}

// Health is the gateway's /health report.
type Health struct {
	Status             string `json:"status"`
	DatabaseAccessible bool   `json:"database_accessible"`
	FFmpegAvailable    bool   `json:"ffmpeg_available"`
	FFprobeAvailable   bool   `json:"ffprobe_available"`
	ContactsAvailable  bool   `json:"contacts_available"`
}

// OK reports whether the gateway is fully operational.
func (h Health) OK() bool { return h.Status == "ok" }

// errorBody covers both {"detail": "..."} and the send error shape.
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
	Error  string          `json:"error"`
}

func (b errorBody) message() string {
	var s string
	if len(b.Detail) > 0 && json.Unmarshal(b.Detail, &s) == nil && s != "" {
		return s
	}
	var nested errorBody
	if len(b.Detail) > 0 && json.Unmarshal(b.Detail, &nested) == nil && nested.Error != "" {
		return nested.Error
	}
	return b.Error
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ParseTime accepts RFC3339 timestamps and the naive ISO form the gateway
// emits for local times. Naive values are interpreted in the local zone.
// Unparseable values yield the zero time.
func ParseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	s = strings.TrimSuffix(s, "Z")
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func contactFromWire(c *contactJSON) *model.Contact {
	if c == nil {
		return nil
	}
	return &model.Contact{
		Handle:     c.Handle,
		Name:       str(c.Name),
		GivenName:  str(c.GivenName),
		FamilyName: str(c.FamilyName),
		Nickname:   str(c.Nickname),
		Initials:   str(c.Initials),
		HasImage:   c.HasImage,
		ImageURL:   str(c.ImageURL),
	}
}

// ToModel converts a wire message.
func (m MessageJSON) ToModel() model.Message {
	out := model.Message{
		RowID:          m.RowID,
		GUID:           m.GUID,
		Text:           str(m.Text),
		Timestamp:      ParseTime(str(m.Timestamp)),
		IsFromMe:       m.IsFromMe,
		HandleID:       str(m.HandleID),
		TapbackType:    str(m.TapbackType),
		AssociatedGUID: str(m.AssociatedGUID),
		Contact:        contactFromWire(m.Contact),
		Status:         model.Confirmed,
	}
	if m.ChatID != nil {
		out.ChatID = *m.ChatID
	}
	for _, a := range m.Attachments {
		out.Attachments = append(out.Attachments, model.Attachment{
			RowID:        a.RowID,
			GUID:         a.GUID,
			MimeType:     str(a.MimeType),
			Filename:     str(a.Filename),
			TotalBytes:   a.TotalBytes,
			URL:          a.URL,
			ThumbnailURL: str(a.ThumbnailURL),
			StreamURL:    str(a.StreamURL),
		})
	}
	return out
}

// MessagesFromWire converts a list of wire messages.
func MessagesFromWire(in []MessageJSON) []model.Message {
	out := make([]model.Message, 0, len(in))
	for _, m := range in {
		out = append(out, m.ToModel())
	}
	return out
}

func chatFromWire(c chatJSON) model.Chat {
	out := model.Chat{
		RowID:               c.RowID,
		GUID:                c.GUID,
		DisplayName:         str(c.DisplayName),
		Identifier:          str(c.Identifier),
		LastMessageTime:     ParseTime(str(c.LastMessageTime)),
		LastMessageText:     str(c.LastMessageText),
		LastMessageIsFromMe: c.LastMessageIsFromMe,
		Participants:        c.Participants,
		Contact:             contactFromWire(c.Contact),
	}
	for _, p := range c.ParticipantContacts {
		out.ParticipantContacts = append(out.ParticipantContacts, model.Participant{
			Handle:  p.Handle,
			Contact: contactFromWire(p.Contact),
		})
	}
	return out
}
