package sync

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/model"
)

// ErrEmptyMessage is reported when a send has no text.
var ErrEmptyMessage = errors.New("message cannot be empty")

// SendNew sends text to a recipient that may not have a conversation yet.
// The recipient is validated and normalized first. The outcome is published
// as a ComposeResult; after a successful send the conversation list is
// refreshed so the new conversation shows up.
func (e *Engine) SendNew(recipient, text string) {
	e.post(func() {
		text := strings.TrimSpace(text)
		to, err := model.NormalizeRecipient(recipient)
		if err == nil && text == "" {
			err = ErrEmptyMessage
		}
		if err != nil {
			e.publish(bus.ComposeSent, ComposeResult{Recipient: recipient, Text: text, Err: err})
			return
		}

		id := uuid.NewString()
		go func() {
			err := e.gw.SendText(e.ctx, to, text, id)
			e.post(func() {
				if err != nil {
					e.logger.Warn("send to new recipient failed", zap.String("client_msg_id", id), zap.Error(err))
				} else {
					e.logger.Info("sent to new recipient", zap.String("client_msg_id", id))
					e.refreshChats()
				}
				e.publish(bus.ComposeSent, ComposeResult{Recipient: to, Text: text, Err: err})
			})
		}()
	})
}
