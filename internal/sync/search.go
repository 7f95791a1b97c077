package sync

import (
	"strings"
	"time"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
)

type searchState struct {
	seq      uint64
	query    string
	results  []SearchResult
	offset   int
	hasMore  bool
	inFlight bool
	err      string
	timer    *time.Timer
}

func (s *searchState) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *searchState) view() SearchView {
	return SearchView{
		Query:   s.query,
		Results: s.results,
		HasMore: s.hasMore,
		Loading: s.inFlight,
		Error:   s.err,
	}
}

// Search runs a message search after the input has been idle for the
// debounce interval. Each call supersedes the previous query.
func (e *Engine) Search(query string) {
	e.post(func() {
		s := &e.search
		s.stopTimer()
		s.seq++
		s.query = strings.TrimSpace(query)
		s.results, s.offset, s.hasMore, s.inFlight, s.err = nil, 0, false, false, ""
		if s.query == "" {
			e.publish(bus.SearchResults, s.view())
			return
		}
		seq := s.seq
		s.timer = time.AfterFunc(e.opts.SearchDebounce, func() {
			e.post(func() {
				if seq == e.search.seq {
					e.search.timer = nil
					e.runSearch()
				}
			})
		})
	})
}

// SearchMore fetches the next page of the current search.
func (e *Engine) SearchMore() {
	e.post(func() {
		if e.search.query == "" || !e.search.hasMore || e.search.inFlight {
			return
		}
		e.runSearch()
	})
}

func (e *Engine) runSearch() {
	s := &e.search
	s.inFlight = true
	e.publish(bus.SearchResults, s.view())

	seq := s.seq
	q := api.SearchQuery{Query: s.query, Limit: e.opts.SearchPageSize, Offset: s.offset}
	go func() {
		page, err := e.gw.Search(e.ctx, q)
		e.post(func() {
			if seq != e.search.seq {
				return
			}
			s.inFlight = false
			if err != nil {
				s.err = "Search failed: " + err.Error()
				e.publishError("search", 0, err)
				e.publish(bus.SearchResults, s.view())
				return
			}
			for _, m := range page.Messages {
				name := ""
				if chat, ok := e.chats.Get(m.ChatID); ok {
					name = chatlist.DisplayName(chat)
				}
				s.results = append(s.results, SearchResult{Message: m, ChatName: name})
			}
			s.offset = page.NextOffset()
			s.hasMore = page.HasMore
			s.err = ""
			e.publish(bus.SearchResults, s.view())
		})
	}()
}

// Snippet returns up to width runes of text centred on the first
// case-insensitive occurrence of query, with "..." marking cut ends.
func Snippet(text, query string, width int) string {
	runes := []rune(text)
	if width <= 0 || len(runes) <= width {
		return text
	}
	start := 0
	if i := strings.Index(strings.ToLower(text), strings.ToLower(query)); i >= 0 && query != "" {
		pos := len([]rune(text[:i]))
		start = max(pos-width/3, 0)
	}
	end := min(start+width, len(runes))
	start = max(end-width, 0)

	out := string(runes[start:end])
	if start > 0 {
		out = "..." + out
	}
	if end < len(runes) {
		out += "..."
	}
	return out
}
