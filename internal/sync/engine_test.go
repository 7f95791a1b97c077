package sync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/timeline"
)

type fakeGateway struct {
	mu       sync.Mutex
	chats    []model.Chat
	pages    map[int64][]model.Message
	gates    map[int64]chan struct{}
	sendErr  error
	sent     []string
	searches []string
	queries  []api.MessagesQuery
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pages: make(map[int64][]model.Message),
		gates: make(map[int64]chan struct{}),
	}
}

func (g *fakeGateway) Chats(ctx context.Context, limit int) ([]model.Chat, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.chats), nil
}

func (g *fakeGateway) Messages(ctx context.Context, q api.MessagesQuery) ([]model.Message, error) {
	g.mu.Lock()
	gate := g.gates[q.ChatID]
	g.queries = append(g.queries, q)
	g.mu.Unlock()
	if gate != nil {
		<-gate
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []model.Message
	for _, m := range g.pages[q.ChatID] {
		if q.BeforeRowID > 0 && m.RowID >= q.BeforeRowID {
			continue
		}
		out = append(out, m)
	}
	if len(out) > q.Limit {
		out = out[len(out)-q.Limit:]
	}
	return out, nil
}

func (g *fakeGateway) SendText(ctx context.Context, recipient, text, clientMsgID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sent = append(g.sent, recipient+":"+text)
	return g.sendErr
}

func (g *fakeGateway) Search(ctx context.Context, q api.SearchQuery) (*api.SearchPage, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.searches = append(g.searches, q.Query)
	return &api.SearchPage{
		Messages: []model.Message{{RowID: 5, ChatID: 1, Text: "hello " + q.Query}},
		Offset:   q.Offset,
		HasMore:  false,
	}, nil
}

// waitSent polls until at least n sends reached the gateway.
func (g *fakeGateway) waitSent(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		g.mu.Lock()
		sent := slices.Clone(g.sent)
		g.mu.Unlock()
		if len(sent) >= n || time.Now().After(deadline) {
			return sent
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func msg(rowID, chatID int64, text string, ts time.Time) model.Message {
	return model.Message{RowID: rowID, GUID: text, ChatID: chatID, Text: text, Timestamp: ts, HandleID: "+15551234567"}
}

type harness struct {
	gw     *fakeGateway
	engine *Engine
	events <-chan bus.Event
}

func newHarness(t *testing.T, gw *fakeGateway, opts Options) *harness {
	t.Helper()
	b := bus.New()
	events, unsub := b.Subscribe("", 256)
	e := NewEngine(gw, nil, nil, b, opts, nil)
	ctx, cancel := context.WithCancel(context.Background())
	e.Start(ctx)
	t.Cleanup(func() {
		cancel()
		<-e.Done()
		unsub()
	})
	return &harness{gw: gw, engine: e, events: events}
}

// waitFor returns the first event of kind whose payload satisfies ok.
func (h *harness) waitFor(t *testing.T, kind string, ok func(any) bool) any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case evt := <-h.events:
			if evt.Kind == kind && (ok == nil || ok(evt.Payload)) {
				return evt.Payload
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", kind)
			return nil
		}
	}
}

func (h *harness) waitView(t *testing.T, ok func(timeline.View) bool) timeline.View {
	t.Helper()
	return h.waitFor(t, bus.TimelineRendered, func(p any) bool { return ok(p.(timeline.View)) }).(timeline.View)
}

// tracked returns the number of outstanding sends across all chats.
func (h *harness) tracked() int {
	var n int
	h.engine.call(func() { n = h.engine.outbox.Len() })
	return n
}

func rowIDs(v timeline.View) []int64 {
	var ids []int64
	for _, it := range v.Items {
		if it.Kind == timeline.ItemMessage {
			ids = append(ids, it.Message.RowID)
		}
	}
	return ids
}

func TestOpenChatLoadsLatestPage(t *testing.T) {
	gw := newFakeGateway()
	base := time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC)
	gw.chats = []model.Chat{{RowID: 1, Identifier: "+15551234567"}}
	gw.pages[1] = []model.Message{msg(1, 1, "a", base), msg(2, 1, "b", base.Add(time.Minute))}
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.RefreshChats()
	h.waitFor(t, bus.ChatlistUpdated, func(p any) bool { return len(p.([]chatlist.Row)) == 1 })
	h.engine.OpenChat(1)

	loading := h.waitView(t, func(v timeline.View) bool { return v.ChatID == 1 })
	if !loading.Loading {
		t.Error("first render should be loading")
	}
	v := h.waitView(t, func(v timeline.View) bool { return !v.Loading })
	if got, want := rowIDs(v), []int64{1, 2}; !slices.Equal(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
	if !v.ScrollToBottom {
		t.Error("initial page should scroll to bottom")
	}
	if v.HasMore {
		t.Error("short first page should not have more")
	}
}

func TestSwitchingChatsDiscardsStalePage(t *testing.T) {
	gw := newFakeGateway()
	now := time.Now()
	gw.pages[1] = []model.Message{msg(1, 1, "old chat", now)}
	gw.pages[2] = []model.Message{msg(7, 2, "new chat", now)}
	gate := make(chan struct{})
	gw.gates[1] = gate
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.OpenChat(1)
	h.engine.OpenChat(2)
	v := h.waitView(t, func(v timeline.View) bool { return v.ChatID == 2 && !v.Loading })
	if got := rowIDs(v); !slices.Equal(got, []int64{7}) {
		t.Fatalf("rows = %v, want [7]", got)
	}
	close(gate)
	time.Sleep(50 * time.Millisecond)

	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{msg(8, 2, "live", now)}, LastRowID: 8})
	v = h.waitView(t, func(v timeline.View) bool { return slices.Contains(rowIDs(v), 8) })
	if got := rowIDs(v); !slices.Equal(got, []int64{7, 8}) {
		t.Errorf("rows = %v, want [7 8]", got)
	}
}

func TestSubmitConfirmedByFeed(t *testing.T) {
	gw := newFakeGateway()
	gw.chats = []model.Chat{{RowID: 1, Identifier: "+15551234567"}}
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.RefreshChats()
	h.waitFor(t, bus.ChatlistUpdated, nil)
	h.engine.OpenChat(1)
	h.waitView(t, func(v timeline.View) bool { return !v.Loading })

	h.engine.Submit("  hi there ")
	v := h.waitView(t, func(v timeline.View) bool { return len(v.Items) == 1 })
	pending := v.Items[0].Message
	if pending.RowID != -1 || pending.Status != model.Pending || pending.Text != "hi there" {
		t.Fatalf("placeholder = %+v", pending)
	}

	echo := model.Message{RowID: 40, ChatID: 1, Text: "hi there", IsFromMe: true, Timestamp: time.Now()}
	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{echo}, LastRowID: 40})
	v = h.waitView(t, func(v timeline.View) bool {
		return len(v.Items) == 1 && v.Items[0].Message.RowID == 40
	})
	if v.Items[0].Message.Status != model.Confirmed {
		t.Errorf("status = %q, want confirmed", v.Items[0].Message.Status)
	}
	if got := h.engine.Outbox(); len(got) != 0 {
		t.Errorf("outbox = %v, want empty", got)
	}

	if got := gw.waitSent(t, 1); !slices.Equal(got, []string{"+15551234567:hi there"}) {
		t.Errorf("sent = %v", got)
	}
}

func TestLiveMessageDuringFirstPageIsKept(t *testing.T) {
	gw := newFakeGateway()
	now := time.Now()
	gw.pages[1] = []model.Message{msg(10, 1, "page", now)}
	gate := make(chan struct{})
	gw.gates[1] = gate
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.OpenChat(1)
	h.waitView(t, func(v timeline.View) bool { return v.ChatID == 1 && v.Loading })
	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{msg(11, 1, "live", now)}, LastRowID: 11})
	h.waitView(t, func(v timeline.View) bool { return slices.Contains(rowIDs(v), 11) })

	close(gate)
	v := h.waitView(t, func(v timeline.View) bool { return !v.Loading })
	if got, want := rowIDs(v), []int64{10, 11}; !slices.Equal(got, want) {
		t.Errorf("rows = %v, want %v", got, want)
	}
}

func TestRedeliveredMessageDoesNotConfirm(t *testing.T) {
	gw := newFakeGateway()
	gw.chats = []model.Chat{{RowID: 1, Identifier: "+15551234567"}, {RowID: 2, Identifier: "+15550000000"}}
	old := model.Message{RowID: 20, ChatID: 1, Text: "ok", IsFromMe: true, Timestamp: time.Now()}
	gw.pages[1] = []model.Message{old}
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.RefreshChats()
	h.waitFor(t, bus.ChatlistUpdated, nil)
	h.engine.OpenChat(1)
	h.waitView(t, func(v timeline.View) bool { return !v.Loading })
	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{msg(30, 2, "elsewhere", time.Now())}, LastRowID: 30})

	h.engine.Submit("ok")
	h.waitView(t, func(v timeline.View) bool { return len(v.Items) == 2 })

	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{old}, LastRowID: 20})
	if n := h.tracked(); n != 1 {
		t.Fatalf("tracked after duplicate = %d, want 1", n)
	}

	h.engine.OpenChat(2)
	h.waitView(t, func(v timeline.View) bool { return v.ChatID == 2 && !v.Loading })
	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{old}, LastRowID: 20})
	if n := h.tracked(); n != 1 {
		t.Fatalf("tracked after background duplicate = %d, want 1", n)
	}

	fresh := model.Message{RowID: 31, ChatID: 1, Text: "ok", IsFromMe: true, Timestamp: time.Now()}
	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{fresh}, LastRowID: 31})
	if n := h.tracked(); n != 0 {
		t.Errorf("tracked after confirmation = %d, want 0", n)
	}
}

func TestFailedSendRetryAndDismiss(t *testing.T) {
	gw := newFakeGateway()
	gw.chats = []model.Chat{{RowID: 1, Identifier: "+1555"}}
	gw.sendErr = errors.New("boom")
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.RefreshChats()
	h.waitFor(t, bus.ChatlistUpdated, nil)
	h.engine.OpenChat(1)
	h.waitView(t, func(v timeline.View) bool { return !v.Loading })

	h.engine.Submit("x")
	v := h.waitView(t, func(v timeline.View) bool {
		return len(v.Items) == 1 && v.Items[0].Message.Status == model.Failed
	})
	id := v.Items[0].Message.RowID

	h.engine.Retry(id)
	h.waitView(t, func(v timeline.View) bool {
		return len(v.Items) == 1 && v.Items[0].Message.Status == model.Failed
	})

	h.engine.Dismiss(id)
	h.waitView(t, func(v timeline.View) bool { return len(v.Items) == 0 })

	h.engine.Dismiss(id)
	evt := h.waitFor(t, bus.EngineError, nil).(ErrorEvent)
	if evt.Op != "dismiss" {
		t.Errorf("op = %q, want dismiss", evt.Op)
	}
}

func TestBackgroundBatchUpdatesListAndNotifies(t *testing.T) {
	gw := newFakeGateway()
	gw.chats = []model.Chat{
		{RowID: 1, Identifier: "+1555"},
		{RowID: 2, DisplayName: "Climbing", Participants: []string{"a", "b"}},
	}
	h := newHarness(t, gw, Options{PageSize: 10, Notifications: true})

	h.engine.RefreshChats()
	h.waitFor(t, bus.ChatlistUpdated, nil)
	h.engine.OpenChat(1)
	h.waitView(t, func(v timeline.View) bool { return !v.Loading })
	h.engine.SetFocused(false)

	in := model.Message{RowID: 9, ChatID: 2, Text: "summit?", HandleID: "a", Timestamp: time.Now()}
	h.engine.HandleBatch(feed.Batch{Messages: []model.Message{in}, LastRowID: 9})

	rows := h.waitFor(t, bus.ChatlistUpdated, func(p any) bool {
		rows := p.([]chatlist.Row)
		return len(rows) == 2 && rows[0].ChatID == 2
	}).([]chatlist.Row)
	if rows[0].Unread != 1 || rows[0].Preview != "summit?" {
		t.Errorf("top row = %+v", rows[0])
	}

	sum := h.waitFor(t, bus.FeedBatch, nil).(BatchSummary)
	if sum.Count != 1 || sum.Active != 0 || sum.LastRowID != 9 {
		t.Errorf("summary = %+v", sum)
	}

	n := h.waitFor(t, bus.NotifyMessage, nil).(Notification)
	if n.ChatID != 2 || n.Title != "Climbing" || n.Body != "summit?" {
		t.Errorf("notification = %+v", n)
	}
}

func TestLoadOlderPrepends(t *testing.T) {
	gw := newFakeGateway()
	now := time.Now()
	for i := int64(1); i <= 5; i++ {
		gw.pages[1] = append(gw.pages[1], msg(i, 1, "m", now.Add(time.Duration(i)*time.Second)))
	}
	h := newHarness(t, gw, Options{PageSize: 3, ScrollThreshold: 2})

	h.engine.OpenChat(1)
	v := h.waitView(t, func(v timeline.View) bool { return !v.Loading })
	if got := rowIDs(v); !slices.Equal(got, []int64{3, 4, 5}) || !v.HasMore {
		t.Fatalf("first page = %v hasMore=%v", got, v.HasMore)
	}

	h.engine.ScrolledTo(0)
	v = h.waitView(t, func(v timeline.View) bool { return v.Prepended })
	if got := rowIDs(v); !slices.Equal(got, []int64{1, 2, 3, 4, 5}) {
		t.Errorf("rows = %v", got)
	}
	if v.HasMore {
		t.Error("short older page should end pagination")
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	last := gw.queries[len(gw.queries)-1]
	if last.BeforeRowID != 3 {
		t.Errorf("before = %d, want 3", last.BeforeRowID)
	}
}

func TestSearchDebounce(t *testing.T) {
	gw := newFakeGateway()
	gw.chats = []model.Chat{{RowID: 1, DisplayName: "Family"}}
	h := newHarness(t, gw, Options{SearchDebounce: 50 * time.Millisecond})

	h.engine.RefreshChats()
	h.waitFor(t, bus.ChatlistUpdated, nil)
	h.engine.Search("d")
	h.engine.Search("di")
	h.engine.Search("dinner")

	sv := h.waitFor(t, bus.SearchResults, func(p any) bool {
		sv := p.(SearchView)
		return !sv.Loading && len(sv.Results) > 0
	}).(SearchView)
	if sv.Query != "dinner" || sv.Results[0].ChatName != "Family" {
		t.Errorf("search view = %+v", sv)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if !slices.Equal(gw.searches, []string{"dinner"}) {
		t.Errorf("searches = %v, want only the last query", gw.searches)
	}
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		text, query string
		width       int
		want        string
	}{
		{"short", "x", 10, "short"},
		{"the quick brown fox jumps", "fox", 9, "...wn fox ju..."},
		{"needle at start of a long line", "needle", 6, "needle..."},
		{"no match in this text", "zzz", 5, "no ma..."},
	}
	for _, tt := range tests {
		if got := Snippet(tt.text, tt.query, tt.width); got != tt.want {
			t.Errorf("Snippet(%q, %q, %d) = %q, want %q", tt.text, tt.query, tt.width, got, tt.want)
		}
	}
}

func TestSendNewNormalizesRecipient(t *testing.T) {
	gw := newFakeGateway()
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.SendNew("+1 (555) 123-4567", " hello ")
	res := h.waitFor(t, bus.ComposeSent, nil).(ComposeResult)
	if res.Err != nil || res.Recipient != "+15551234567" {
		t.Fatalf("result = %+v", res)
	}
	if got := gw.waitSent(t, 1); !slices.Equal(got, []string{"+15551234567:hello"}) {
		t.Errorf("sent = %v", got)
	}
	h.waitFor(t, bus.ChatlistUpdated, nil)
}

func TestSendNewRejectsInvalidInput(t *testing.T) {
	gw := newFakeGateway()
	h := newHarness(t, gw, Options{PageSize: 10})

	h.engine.SendNew("bob", "hi")
	res := h.waitFor(t, bus.ComposeSent, nil).(ComposeResult)
	if !errors.Is(res.Err, model.ErrInvalidRecipient) {
		t.Errorf("err = %v, want ErrInvalidRecipient", res.Err)
	}
	h.engine.SendNew("bob@example.com", "  ")
	res = h.waitFor(t, bus.ComposeSent, nil).(ComposeResult)
	if !errors.Is(res.Err, ErrEmptyMessage) {
		t.Errorf("err = %v, want ErrEmptyMessage", res.Err)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.sent) != 0 {
		t.Errorf("sent = %v, want nothing", gw.sent)
	}
}
