// Package outbox tracks optimistic sends until the live feed confirms them.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/model"
)

var (
	// ErrUnknownEntry is returned for ids that are not tracked.
	ErrUnknownEntry = errors.New("outbox: unknown entry")
	// ErrNotFailed is returned when retrying or dismissing an entry that has not failed.
	ErrNotFailed = errors.New("outbox: entry has not failed")
)

// TextSender delivers a message to the gateway. A nil error only means the
// gateway accepted the request; the message itself arrives via the live feed.
type TextSender interface {
	SendText(ctx context.Context, recipient, text, clientMsgID string) error
}

// Entry is a locally created message awaiting confirmation.
type Entry struct {
	ID          int64
	ClientMsgID string
	ChatID      int64
	Recipient   string
	Text        string
	CreatedAt   time.Time
	State       model.DeliveryStatus
	Err         error
}

// Message returns the placeholder rendered in the timeline for e.
func (e Entry) Message() model.Message {
	return model.Message{
		RowID:     e.ID,
		ChatID:    e.ChatID,
		Text:      e.Text,
		IsFromMe:  true,
		Timestamp: e.CreatedAt,
		Status:    e.State,
	}
}

// Tracker owns the pending and failed sends. Its methods must be called from
// a single goroutine; send completions are handed back through post, which is
// expected to run the callback on that same goroutine.
type Tracker struct {
	sender TextSender
	post   func(func())
	notify func()
	logger *zap.Logger
	now    func() time.Time

	lastID  int64
	entries []*Entry
}

// NewTracker creates a tracker. notify is called, on the owner goroutine,
// whenever an entry changes state outside of a direct method call.
func NewTracker(sender TextSender, post func(func()), notify func(), logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notify == nil {
		notify = func() {}
	}
	return &Tracker{
		sender: sender,
		post:   post,
		notify: notify,
		logger: logger,
		now:    time.Now,
	}
}

// Submit appends a pending entry with the next synthetic id and starts
// sending it in the background.
func (t *Tracker) Submit(ctx context.Context, chatID int64, recipient, text string) Entry {
	t.lastID--
	e := &Entry{
		ID:          t.lastID,
		ClientMsgID: uuid.NewString(),
		ChatID:      chatID,
		Recipient:   recipient,
		Text:        text,
		CreatedAt:   t.now(),
		State:       model.Pending,
	}
	t.entries = append(t.entries, e)
	t.send(ctx, e)
	return *e
}

// Retry moves a failed entry back to pending and sends it again.
func (t *Tracker) Retry(ctx context.Context, id int64) error {
	e := t.find(id)
	if e == nil {
		return fmt.Errorf("retry %d: %w", id, ErrUnknownEntry)
	}
	if e.State != model.Failed {
		return fmt.Errorf("retry %d: %w", id, ErrNotFailed)
	}
	e.State = model.Pending
	e.Err = nil
	t.send(ctx, e)
	return nil
}

// Dismiss permanently removes a failed entry.
func (t *Tracker) Dismiss(id int64) error {
	e := t.find(id)
	if e == nil {
		return fmt.Errorf("dismiss %d: %w", id, ErrUnknownEntry)
	}
	if e.State != model.Failed {
		return fmt.Errorf("dismiss %d: %w", id, ErrNotFailed)
	}
	t.remove(id)
	return nil
}

// MarkFailed transitions a pending entry to failed. It is a no-op for
// entries that were confirmed or dismissed in the meantime.
func (t *Tracker) MarkFailed(id int64, err error) bool {
	e := t.find(id)
	if e == nil || e.State != model.Pending {
		return false
	}
	e.State = model.Failed
	e.Err = err
	return true
}

// Confirm matches a confirmed message against the outstanding sends: for a
// self-authored, non-tapback message the oldest pending entry of the same
// chat with identical text is removed. Identical texts sent in quick
// succession may be matched out of order.
func (t *Tracker) Confirm(m model.Message) (Entry, bool) {
	if !m.IsFromMe || m.IsTapback() {
		return Entry{}, false
	}
	for _, e := range t.entries {
		if e.State == model.Pending && e.ChatID == m.ChatID && e.Text == m.Text {
			removed := *e
			t.remove(e.ID)
			t.logger.Debug("send confirmed",
				zap.Int64("id", removed.ID),
				zap.String("client_msg_id", removed.ClientMsgID),
				zap.Int64("rowid", m.RowID),
			)
			return removed, true
		}
	}
	return Entry{}, false
}

// Entries returns the tracked entries of chatID in submission order.
func (t *Tracker) Entries(chatID int64) []Entry {
	var out []Entry
	for _, e := range t.entries {
		if e.ChatID == chatID {
			out = append(out, *e)
		}
	}
	return out
}

// Placeholders returns the timeline placeholders of chatID.
func (t *Tracker) Placeholders(chatID int64) []model.Message {
	var out []model.Message
	for _, e := range t.entries {
		if e.ChatID == chatID {
			out = append(out, e.Message())
		}
	}
	return out
}

// Len returns the number of tracked entries.
func (t *Tracker) Len() int { return len(t.entries) }

func (t *Tracker) send(ctx context.Context, e *Entry) {
	id, recipient, text, clientID := e.ID, e.Recipient, e.Text, e.ClientMsgID
	go func() {
		err := t.sender.SendText(ctx, recipient, text, clientID)
		if err == nil {
			t.logger.Debug("send accepted", zap.Int64("id", id), zap.String("client_msg_id", clientID))
			return
		}
		t.logger.Warn("send failed", zap.Int64("id", id), zap.String("client_msg_id", clientID), zap.Error(err))
		t.post(func() {
			if t.MarkFailed(id, err) {
				t.notify()
			}
		})
	}()
}

func (t *Tracker) find(id int64) *Entry {
	for _, e := range t.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (t *Tracker) remove(id int64) {
	for i, e := range t.entries {
		if e.ID == id {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}
