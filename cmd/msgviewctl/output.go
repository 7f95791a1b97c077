package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/model"
)

// now is replaced in tests.
var now = time.Now

type chatJSON struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Identifier  string    `json:"identifier"`
	Group       bool      `json:"group"`
	LastMessage string    `json:"last_message"`
	LastTime    time.Time `json:"last_message_time"`
	Unread      int       `json:"unread"`
}

type messageJSON struct {
	RowID       int64     `json:"rowid"`
	GUID        string    `json:"guid"`
	ChatID      int64     `json:"chat_id"`
	Sender      string    `json:"sender"`
	FromMe      bool      `json:"from_me"`
	Text        string    `json:"text"`
	Tapback     string    `json:"tapback,omitempty"`
	Target      string    `json:"target_guid,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	Attachments int       `json:"attachments"`
}

func toMessageJSON(m model.Message) messageJSON {
	return messageJSON{
		RowID:       m.RowID,
		GUID:        m.GUID,
		ChatID:      m.ChatID,
		Sender:      m.SenderName(),
		FromMe:      m.IsFromMe,
		Text:        m.Text,
		Tapback:     m.TapbackType,
		Target:      m.TargetGUID(),
		Timestamp:   m.Timestamp,
		Attachments: len(m.Attachments),
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printChats(w io.Writer, chats []model.Chat, asJSON bool) error {
	if asJSON {
		out := make([]chatJSON, len(chats))
		for i, c := range chats {
			out[i] = chatJSON{
				ID:          c.RowID,
				Name:        chatlist.DisplayName(c),
				Identifier:  c.Identifier,
				Group:       c.IsGroup(),
				LastMessage: c.LastMessageText,
				LastTime:    c.LastMessageTime,
				Unread:      c.Unread,
			}
		}
		return writeJSON(w, out)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tNAME\tLAST MESSAGE\tTIME")
	t := now()
	for _, c := range chats {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n",
			c.RowID,
			oneLine(chatlist.DisplayName(c), 40),
			oneLine(chatlist.Preview(c.LastMessageText, c.LastMessageIsFromMe), 50),
			chatlist.RelativeLabel(c.LastMessageTime, t))
	}
	return tw.Flush()
}

func printMessages(w io.Writer, msgs []model.Message, asJSON bool) error {
	if asJSON {
		out := make([]messageJSON, len(msgs))
		for i, m := range msgs {
			out[i] = toMessageJSON(m)
		}
		return writeJSON(w, out)
	}
	for _, m := range msgs {
		if err := printMessageLine(w, m); err != nil {
			return err
		}
	}
	return nil
}

func printMessageLine(w io.Writer, m model.Message) error {
	stamp := m.Timestamp.Local().Format("2006-01-02 15:04")
	if m.IsTapback() {
		r := model.ParseTapback(m.TapbackType)
		label := r.Emoji
		if label == "" {
			label = m.TapbackType
		}
		_, err := fmt.Fprintf(w, "%s  %-8d %s reacted %s\n", stamp, m.RowID, m.SenderName(), label)
		return err
	}
	_, err := fmt.Fprintf(w, "%s  %-8d %s: %s\n", stamp, m.RowID, m.SenderName(), strings.ReplaceAll(m.DisplayText(), "\n", " | "))
	return err
}

func printSearch(w io.Writer, query string, page *api.SearchPage, asJSON bool) error {
	if asJSON {
		out := struct {
			Query      string        `json:"query"`
			Messages   []messageJSON `json:"messages"`
			HasMore    bool          `json:"has_more"`
			NextOffset int           `json:"next_offset"`
		}{Query: query, Messages: make([]messageJSON, len(page.Messages)), HasMore: page.HasMore, NextOffset: page.NextOffset()}
		for i, m := range page.Messages {
			out.Messages[i] = toMessageJSON(m)
		}
		return writeJSON(w, out)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "CHAT\tROWID\tSENDER\tMESSAGE\tTIME")
	t := now()
	for _, m := range page.Messages {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%s\t%s\t%s\n",
			m.ChatID, m.RowID, oneLine(m.SenderName(), 24), oneLine(m.DisplayText(), 60),
			chatlist.RelativeLabel(m.Timestamp, t))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.HasMore {
		_, _ = fmt.Fprintf(w, "more results: --offset %d\n", page.NextOffset())
	}
	return nil
}

func printContact(w io.Writer, c *model.Contact, maxAge time.Duration, asJSON bool) error {
	if asJSON {
		return writeJSON(w, struct {
			Handle   string `json:"handle"`
			Name     string `json:"name"`
			Nickname string `json:"nickname,omitempty"`
			Initials string `json:"initials,omitempty"`
			HasImage bool   `json:"has_image"`
			MaxAge   int    `json:"max_age_seconds"`
		}{c.Handle, c.DisplayName(), c.Nickname, c.Initials, c.HasImage, int(maxAge.Seconds())})
	}
	_, err := fmt.Fprintf(w, "%s\t%s\n", c.Handle, c.DisplayName())
	return err
}

func printHealth(w io.Writer, h *api.Health, asJSON bool) error {
	if asJSON {
		return writeJSON(w, h)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(tw, "status\t%s\n", h.Status)
	_, _ = fmt.Fprintf(tw, "database\t%s\n", yesNo(h.DatabaseAccessible))
	_, _ = fmt.Fprintf(tw, "contacts\t%s\n", yesNo(h.ContactsAvailable))
	_, _ = fmt.Fprintf(tw, "ffmpeg\t%s\n", yesNo(h.FFmpegAvailable))
	_, _ = fmt.Fprintf(tw, "ffprobe\t%s\n", yesNo(h.FFprobeAvailable))
	return tw.Flush()
}

func printBatch(w io.Writer, b feed.Batch, asJSON bool) error {
	if asJSON {
		for _, m := range b.Messages {
			if err := json.NewEncoder(w).Encode(toMessageJSON(m)); err != nil {
				return err
			}
		}
		return nil
	}
	for _, m := range b.Messages {
		if _, err := fmt.Fprintf(w, "[chat %d] ", m.ChatID); err != nil {
			return err
		}
		if err := printMessageLine(w, m); err != nil {
			return err
		}
	}
	return nil
}

func printResult(w io.Writer, v any, asJSON bool, text string) error {
	if asJSON {
		return writeJSON(w, v)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// oneLine flattens s and cuts it to max runes.
func oneLine(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
