package sync

import (
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/model"
)

var _ feed.Handler = (*Engine)(nil)

// HandleBatch implements feed.Handler.
func (e *Engine) HandleBatch(b feed.Batch) {
	e.post(func() { e.applyBatch(b) })
}

// applyBatch routes a feed batch: messages of the open conversation are
// merged into the timeline, every message updates the conversation list, and
// new self-authored messages confirm optimistic sends. A redelivered message
// never confirms anything.
func (e *Engine) applyBatch(b feed.Batch) {
	if e.reconciler != nil {
		e.reconciler.Observe(b.LastRowID)
	}
	prevSeen := e.seen
	e.seen = max(e.seen, b.LastRowID)

	var active []model.Message
	for _, m := range b.Messages {
		if e.active != 0 && m.ChatID == e.active {
			active = append(active, m)
		}
	}

	added := e.store.Merge(active)
	changed := len(added) > 0
	for _, m := range added {
		if _, ok := e.outbox.Confirm(m); ok {
			changed = true
			e.publish(bus.OutboxChanged, e.outbox.Entries(e.active))
		}
	}
	for _, m := range b.Messages {
		e.seen = max(e.seen, m.RowID)
		if m.ChatID != e.active && m.RowID > prevSeen {
			e.outbox.Confirm(m)
		}
	}
	if changed {
		e.render(len(added) > 0, false)
		e.resolveContacts()
	}

	unknown := e.chats.ApplyBatch(b.Messages, e.active)
	e.publishChats()
	if len(unknown) > 0 {
		e.logger.Debug("batch references unknown chats", zap.Int64s("chat_ids", unknown))
		e.refreshChats()
	}

	e.publish(bus.FeedBatch, BatchSummary{Count: len(b.Messages), Active: len(active), LastRowID: b.LastRowID})
	e.notify(b.Messages)
}

// notify raises a notification for the first message that arrived in a
// background conversation from someone else, when the client is unfocused.
func (e *Engine) notify(msgs []model.Message) {
	if e.focused || !e.opts.Notifications {
		return
	}
	for _, m := range msgs {
		if m.IsTapback() || m.IsFromMe || m.ChatID == e.active {
			continue
		}
		title := m.SenderName()
		if chat, ok := e.chats.Get(m.ChatID); ok {
			title = chatlist.DisplayName(chat)
		}
		e.publish(bus.NotifyMessage, Notification{
			ChatID:  m.ChatID,
			Title:   title,
			Body:    chatlist.Preview(previewText(m), false),
			Message: m,
		})
		return
	}
}

func previewText(m model.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.DisplayText()
}
