// Package chatlist keeps the ordered conversation list in sync with the live feed.
package chatlist

import (
	"slices"
	"time"

	"github.com/matheus3301/msgview/internal/model"
)

// Row is a rendered conversation list entry.
type Row struct {
	ChatID  int64
	Name    string
	Preview string
	Label   string
	Unread  int
	Group   bool
}

// Controller owns the conversation list, most recent activity first.
// It is not safe for concurrent use.
type Controller struct {
	chats []model.Chat
}

// New returns an empty controller.
func New() *Controller {
	return &Controller{}
}

// Set replaces the list with chats as ordered by the gateway. Unread counts
// of conversations already known are kept.
func (c *Controller) Set(chats []model.Chat) {
	unread := make(map[int64]int, len(c.chats))
	for _, ch := range c.chats {
		unread[ch.RowID] = ch.Unread
	}
	c.chats = make([]model.Chat, len(chats))
	copy(c.chats, chats)
	for i := range c.chats {
		c.chats[i].Unread = unread[c.chats[i].RowID]
	}
}

// Chats returns a copy of the ordered list.
func (c *Controller) Chats() []model.Chat {
	return slices.Clone(c.chats)
}

// Len returns the number of conversations.
func (c *Controller) Len() int { return len(c.chats) }

// Get returns the conversation with the given id.
func (c *Controller) Get(chatID int64) (model.Chat, bool) {
	if i := c.IndexOf(chatID); i >= 0 {
		return c.chats[i], true
	}
	return model.Chat{}, false
}

// IndexOf returns the position of chatID, or -1.
func (c *Controller) IndexOf(chatID int64) int {
	return slices.IndexFunc(c.chats, func(ch model.Chat) bool { return ch.RowID == chatID })
}

// ReorderToTop moves chatID to index 0, keeping the relative order of the
// others. Returns false when the chat is absent or already first.
func (c *Controller) ReorderToTop(chatID int64) bool {
	i := c.IndexOf(chatID)
	if i <= 0 {
		return false
	}
	moved := c.chats[i]
	copy(c.chats[1:i+1], c.chats[:i])
	c.chats[0] = moved
	return true
}

// ApplyBatch updates the list for newly arrived messages, in ascending RowID
// order. Every touched conversation moves to the top; tapbacks do not change
// the preview. Messages from others outside activeChatID raise the unread
// badge. Returns the ids of conversations missing from the list.
func (c *Controller) ApplyBatch(msgs []model.Message, activeChatID int64) []int64 {
	sorted := slices.Clone(msgs)
	slices.SortStableFunc(sorted, func(a, b model.Message) int {
		switch {
		case a.RowID < b.RowID:
			return -1
		case a.RowID > b.RowID:
			return 1
		}
		return 0
	})

	var unknown []int64
	for _, m := range sorted {
		i := c.IndexOf(m.ChatID)
		if i < 0 {
			if !slices.Contains(unknown, m.ChatID) {
				unknown = append(unknown, m.ChatID)
			}
			continue
		}
		ch := &c.chats[i]
		if !m.IsTapback() {
			ch.LastMessageText = previewText(m)
			ch.LastMessageIsFromMe = m.IsFromMe
			if !m.Timestamp.IsZero() {
				ch.LastMessageTime = m.Timestamp
			}
			if m.ChatID != activeChatID && !m.IsFromMe {
				ch.Unread++
			}
		}
		c.ReorderToTop(m.ChatID)
	}
	return unknown
}

// MarkRead clears the unread badge of chatID.
func (c *Controller) MarkRead(chatID int64) {
	if i := c.IndexOf(chatID); i >= 0 {
		c.chats[i].Unread = 0
	}
}

// Rows renders the list for display.
func (c *Controller) Rows(now time.Time) []Row {
	rows := make([]Row, 0, len(c.chats))
	for _, ch := range c.chats {
		rows = append(rows, Row{
			ChatID:  ch.RowID,
			Name:    DisplayName(ch),
			Preview: Preview(ch.LastMessageText, ch.LastMessageIsFromMe),
			Label:   RelativeLabel(ch.LastMessageTime, now),
			Unread:  ch.Unread,
			Group:   ch.IsGroup(),
		})
	}
	return rows
}

func previewText(m model.Message) string {
	if m.Text != "" {
		return m.Text
	}
	if len(m.Attachments) > 0 {
		return m.Attachments[0].Placeholder()
	}
	return ""
}
