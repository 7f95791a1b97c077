// Package timeline holds the message history of the open conversation and
// renders it into a display model.
package timeline

import (
	"slices"

	"github.com/matheus3301/msgview/internal/model"
)

// Store owns the confirmed messages of a single conversation, keyed by RowID.
// Opening another conversation discards everything. Store is not safe for
// concurrent use; the sync engine mutates it from its loop goroutine only.
type Store struct {
	chatID int64
	byID   map[int64]model.Message
	oldest int64
	newest int64
}

// NewStore returns an empty store with no active conversation.
func NewStore() *Store {
	return &Store{byID: make(map[int64]model.Message)}
}

// Load replaces the store contents with the most recent page of chatID.
func (s *Store) Load(chatID int64, page []model.Message) {
	s.Open(chatID)
	s.Merge(page)
}

// Open empties the store and makes chatID the open conversation. Messages
// merged before the first page arrives are kept when the page is merged.
func (s *Store) Open(chatID int64) {
	s.Reset()
	s.chatID = chatID
}

// Reset clears the store and its cursors.
func (s *Store) Reset() {
	s.chatID = 0
	s.byID = make(map[int64]model.Message)
	s.oldest, s.newest = 0, 0
}

// Merge adds messages whose RowID is not yet present and returns the ones
// added, in ascending RowID order. Existing entries are never replaced.
// Messages without a positive RowID are ignored.
func (s *Store) Merge(incoming []model.Message) []model.Message {
	var added []model.Message
	for _, m := range incoming {
		if m.RowID <= 0 {
			continue
		}
		if _, ok := s.byID[m.RowID]; ok {
			continue
		}
		m.Status = model.Confirmed
		s.byID[m.RowID] = m
		added = append(added, m)
		if s.oldest == 0 || m.RowID < s.oldest {
			s.oldest = m.RowID
		}
		if m.RowID > s.newest {
			s.newest = m.RowID
		}
	}
	slices.SortFunc(added, func(a, b model.Message) int { return cmpInt64(a.RowID, b.RowID) })
	return added
}

// SetContact attaches a resolved contact to stored messages from handle
// that do not carry one yet. Returns the number of messages updated.
func (s *Store) SetContact(handle string, c *model.Contact) int {
	if c == nil || handle == "" {
		return 0
	}
	n := 0
	for id, m := range s.byID {
		if m.HandleID == handle && m.Contact == nil && !m.IsFromMe {
			m.Contact = c
			s.byID[id] = m
			n++
		}
	}
	return n
}

// UnresolvedHandles returns the sender handles of messages without a contact.
func (s *Store) UnresolvedHandles() []string {
	seen := make(map[string]bool)
	var out []string
	for _, m := range s.byID {
		if m.IsFromMe || m.Contact != nil || m.HandleID == "" || seen[m.HandleID] {
			continue
		}
		seen[m.HandleID] = true
		out = append(out, m.HandleID)
	}
	slices.Sort(out)
	return out
}

// ChatID returns the open conversation, or 0.
func (s *Store) ChatID() int64 { return s.chatID }

// Oldest returns the smallest RowID held, or 0 when empty.
func (s *Store) Oldest() int64 { return s.oldest }

// Newest returns the largest RowID held, or 0 when empty.
func (s *Store) Newest() int64 { return s.newest }

// Len returns the number of confirmed messages, tapbacks included.
func (s *Store) Len() int { return len(s.byID) }

// Has reports whether rowID is stored.
func (s *Store) Has(rowID int64) bool {
	_, ok := s.byID[rowID]
	return ok
}

// Messages returns all stored messages sorted by RowID.
func (s *Store) Messages() []model.Message {
	out := make([]model.Message, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b model.Message) int { return cmpInt64(a.RowID, b.RowID) })
	return out
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
