// Package pagination loads older history of the open conversation on demand.
package pagination

import "github.com/matheus3301/msgview/internal/model"

// Request identifies one older-page fetch.
type Request struct {
	ChatID      int64
	BeforeRowID int64
	Limit       int
	epoch       uint64
}

// Pager tracks the oldest loaded message of a conversation and whether
// older pages exist. At most one request is in flight. It is not safe for
// concurrent use.
type Pager struct {
	pageSize  int
	threshold int

	chatID   int64
	oldest   int64
	hasMore  bool
	inFlight bool
	epoch    uint64
	armed    bool
}

// New creates a pager. threshold is the scroll offset, in rows from the
// top, at which older history is requested.
func New(pageSize, threshold int) *Pager {
	if pageSize <= 0 {
		pageSize = 50
	}
	if threshold < 0 {
		threshold = 0
	}
	return &Pager{pageSize: pageSize, threshold: threshold, armed: true}
}

// PageSize returns the number of messages requested per page.
func (p *Pager) PageSize() int { return p.pageSize }

// Reset starts paging chatID from its first (most recent) page. Requests
// issued before the reset are discarded on completion.
func (p *Pager) Reset(chatID int64, firstPage []model.Message) {
	p.epoch++
	p.chatID = chatID
	p.inFlight = false
	p.armed = true
	p.oldest = 0
	p.hasMore = len(firstPage) >= p.pageSize
	p.lower(firstPage)
}

// Clear forgets the current conversation.
func (p *Pager) Clear() {
	p.epoch++
	p.chatID = 0
	p.oldest = 0
	p.hasMore = false
	p.inFlight = false
}

// Begin starts an older-page request for chatID. It returns false when a
// request is already in flight, chatID is not the paged conversation, no
// older pages exist, or there is no cursor yet.
func (p *Pager) Begin(chatID int64) (Request, bool) {
	if p.inFlight || chatID == 0 || chatID != p.chatID || !p.hasMore || p.oldest == 0 {
		return Request{}, false
	}
	p.inFlight = true
	return Request{ChatID: chatID, BeforeRowID: p.oldest, Limit: p.pageSize, epoch: p.epoch}, true
}

// Complete finishes req. It returns true when msgs should be merged into
// the timeline. Stale requests and failures return false; a failure only
// clears the in-flight guard.
func (p *Pager) Complete(req Request, msgs []model.Message, err error) bool {
	if req.epoch != p.epoch || req.ChatID != p.chatID {
		return false
	}
	p.inFlight = false
	if err != nil {
		return false
	}
	p.hasMore = len(msgs) >= p.pageSize
	p.lower(msgs)
	return true
}

func (p *Pager) lower(msgs []model.Message) {
	for _, m := range msgs {
		if m.RowID > 0 && (p.oldest == 0 || m.RowID < p.oldest) {
			p.oldest = m.RowID
		}
	}
}

// HasMore reports whether older pages may exist.
func (p *Pager) HasMore() bool { return p.hasMore }

// InFlight reports whether a request is outstanding.
func (p *Pager) InFlight() bool { return p.inFlight }

// Oldest returns the cursor for the next request.
func (p *Pager) Oldest() int64 { return p.oldest }

// Trigger reports whether scrolling to offset should load older history.
// It fires once when the offset enters the top threshold and re-arms only
// after the offset leaves it.
func (p *Pager) Trigger(offset int) bool {
	near := offset <= p.threshold
	if !near {
		p.armed = true
		return false
	}
	if !p.armed {
		return false
	}
	p.armed = false
	return true
}
