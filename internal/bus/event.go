package bus

import "time"

// Event kinds published by the client. Subscribers filter on the prefix
// before the dot ("timeline.", "feed.").
const (
	TimelineRendered = "timeline.rendered"
	ChatlistUpdated  = "chatlist.updated"
	NotifyMessage    = "notify.message"
	SearchResults    = "search.results"
	FeedStateChanged = "feed.state_changed"
	FeedBatch        = "feed.batch"
	OutboxChanged    = "outbox.changed"
	EngineError      = "engine.error"
	ComposeSent      = "compose.sent"
)

// Event is a client event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent stamps an event with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
