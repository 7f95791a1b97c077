package sync

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/outbox"
)

// ErrNoActiveChat is reported when an operation needs an open conversation.
var ErrNoActiveChat = errors.New("no conversation open")

// RefreshChats reloads the conversation list.
func (e *Engine) RefreshChats() {
	e.post(e.refreshChats)
}

func (e *Engine) refreshChats() {
	limit := e.opts.ChatLimit
	go func() {
		chats, err := e.gw.Chats(e.ctx, limit)
		e.post(func() {
			if err != nil {
				e.publishError("refresh_chats", 0, err)
				return
			}
			e.chats.Set(chats)
			e.publishChats()
		})
	}()
}

// OpenChat switches the open conversation and loads its most recent page.
// The previous conversation's messages are discarded.
func (e *Engine) OpenChat(chatID int64) {
	e.post(func() { e.openChat(chatID) })
}

func (e *Engine) openChat(chatID int64) {
	e.active = chatID
	e.store.Open(chatID)
	e.pager.Clear()
	e.loading = true
	e.loadErr = ""
	e.chats.MarkRead(chatID)
	if e.reconciler != nil {
		e.reconciler.ObserveChat(chatID)
	}
	e.render(true, false)
	e.publishChats()

	q := api.MessagesQuery{ChatID: chatID, Limit: e.opts.PageSize}
	go func() {
		msgs, err := e.gw.Messages(e.ctx, q)
		e.post(func() {
			if chatID != e.active {
				e.logger.Debug("discarding page for inactive chat", zap.Int64("chat_id", chatID))
				return
			}
			e.loading = false
			if err != nil {
				e.loadErr = "Failed to load messages: " + err.Error()
				e.publishError("open_chat", chatID, err)
				e.render(false, false)
				return
			}
			// Live messages merged while the page was in flight stay.
			e.store.Merge(msgs)
			e.pager.Reset(chatID, msgs)
			e.render(true, false)
			e.resolveContacts()
		})
	}()
}

// ReloadChat refetches the open conversation, e.g. after an inline error.
func (e *Engine) ReloadChat() {
	e.post(func() {
		if e.active != 0 {
			e.openChat(e.active)
		}
	})
}

// Submit sends text to the open conversation optimistically.
func (e *Engine) Submit(text string) {
	e.post(func() {
		text := strings.TrimSpace(text)
		if text == "" {
			return
		}
		if e.active == 0 {
			e.publishError("submit", 0, ErrNoActiveChat)
			return
		}
		chat, ok := e.chats.Get(e.active)
		if !ok {
			e.publishError("submit", e.active, ErrNoActiveChat)
			return
		}
		e.outbox.Submit(e.ctx, e.active, chat.Recipient(), text)
		e.publish(bus.OutboxChanged, e.outbox.Entries(e.active))
		e.render(true, false)
	})
}

// Retry resends a failed message.
func (e *Engine) Retry(id int64) {
	e.post(func() {
		if err := e.outbox.Retry(e.ctx, id); err != nil {
			e.publishError("retry", e.active, err)
			return
		}
		e.onOutboxChanged()
	})
}

// Dismiss drops a failed message.
func (e *Engine) Dismiss(id int64) {
	e.post(func() {
		if err := e.outbox.Dismiss(id); err != nil {
			e.publishError("dismiss", e.active, err)
			return
		}
		e.onOutboxChanged()
	})
}

// LoadOlder fetches the page before the oldest loaded message.
func (e *Engine) LoadOlder() {
	e.post(e.loadOlder)
}

func (e *Engine) loadOlder() {
	req, ok := e.pager.Begin(e.active)
	if !ok {
		return
	}
	q := api.MessagesQuery{ChatID: req.ChatID, Limit: req.Limit, BeforeRowID: req.BeforeRowID}
	go func() {
		msgs, err := e.gw.Messages(e.ctx, q)
		e.post(func() {
			if !e.pager.Complete(req, msgs, err) {
				if err != nil && req.ChatID == e.active {
					e.publishError("load_older", req.ChatID, err)
				}
				return
			}
			added := e.store.Merge(msgs)
			e.render(false, len(added) > 0)
			e.resolveContacts()
		})
	}()
}

// ScrolledTo reports the first visible row of the timeline. Reaching the
// top threshold loads older history once per approach.
func (e *Engine) ScrolledTo(offset int) {
	e.post(func() {
		if e.pager.Trigger(offset) {
			e.loadOlder()
		}
	})
}

// SetFocused records whether the user is looking at the client.
func (e *Engine) SetFocused(focused bool) {
	e.post(func() { e.focused = focused })
}

// ActiveChat returns the open conversation.
func (e *Engine) ActiveChat() int64 {
	var id int64
	e.call(func() { id = e.active })
	return id
}

// Chat returns the conversation with the given id from the list.
func (e *Engine) Chat(chatID int64) (model.Chat, bool) {
	var (
		chat model.Chat
		ok   bool
	)
	e.call(func() { chat, ok = e.chats.Get(chatID) })
	return chat, ok
}

// Rows returns the rendered conversation list.
func (e *Engine) Rows() []chatlist.Row {
	var rows []chatlist.Row
	e.call(func() { rows = e.chats.Rows(e.now()) })
	return rows
}

// Outbox returns the tracked sends of the open conversation.
func (e *Engine) Outbox() []outbox.Entry {
	var entries []outbox.Entry
	e.call(func() { entries = e.outbox.Entries(e.active) })
	return entries
}
