package store

import (
	"time"

	"github.com/matheus3301/msgview/internal/model"
)

// Sync state keys.
const (
	KeyLastSeenRowID = "feed.last_seen_rowid"
	KeyLastChatID    = "view.last_chat_id"
)

// CachedContact is a persisted contact lookup result. A nil Contact records a
// negative lookup (the gateway has no contact for the handle).
type CachedContact struct {
	Handle    string
	Contact   *model.Contact
	ExpiresAt time.Time
}

// Found reports whether the entry is a positive lookup.
func (c CachedContact) Found() bool {
	return c.Contact != nil
}
