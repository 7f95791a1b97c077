package sync

import (
	"github.com/matheus3301/msgview/internal/model"
)

// Notification is published for a message that arrived in a background
// conversation while the client was unfocused.
type Notification struct {
	ChatID  int64
	Title   string
	Body    string
	Message model.Message
}

// SearchResult is a matching message with the name of its conversation.
type SearchResult struct {
	Message  model.Message
	ChatName string
}

// SearchView is the state of the current search.
type SearchView struct {
	Query   string
	Results []SearchResult
	HasMore bool
	Loading bool
	Error   string
}

// ErrorEvent reports a failed operation that left prior state in place.
type ErrorEvent struct {
	Op     string
	ChatID int64
	Err    error
}

// BatchSummary describes a routed feed batch.
type BatchSummary struct {
	Count     int
	Active    int
	LastRowID int64
}

// ComposeResult reports the outcome of a message sent to a new recipient.
// Err is nil once the gateway accepted the send.
type ComposeResult struct {
	Recipient string
	Text      string
	Err       error
}
