package outbox

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/matheus3301/msgview/internal/model"
)

type sendCall struct {
	Recipient   string
	Text        string
	ClientMsgID string
}

// mockSender records calls and fails while err is set.
type mockSender struct {
	mu    sync.Mutex
	calls []sendCall
	err   error
}

func (m *mockSender) SendText(_ context.Context, recipient, text, clientMsgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sendCall{Recipient: recipient, Text: text, ClientMsgID: clientMsgID})
	return m.err
}

func (m *mockSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// loop stands in for the engine goroutine: posted callbacks are queued and
// run by drain on the test goroutine.
type loop struct {
	ch chan func()
}

func newLoop() *loop { return &loop{ch: make(chan func(), 16)} }

func (l *loop) post(fn func()) { l.ch <- fn }

func (l *loop) drainOne(t *testing.T) {
	t.Helper()
	select {
	case fn := <-l.ch:
		fn()
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for send completion")
	}
}

func waitCalls(t *testing.T, m *mockSender, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for m.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d send calls, want %d", m.count(), n)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSubmitAllocatesDecreasingIDs(t *testing.T) {
	m := &mockSender{}
	tr := NewTracker(m, newLoop().post, nil, nil)
	ctx := context.Background()

	a := tr.Submit(ctx, 1, "+1555", "one")
	b := tr.Submit(ctx, 1, "+1555", "two")
	if a.ID != -1 || b.ID != -2 {
		t.Errorf("ids = %d, %d, want -1, -2", a.ID, b.ID)
	}
	if a.ClientMsgID == "" || a.ClientMsgID == b.ClientMsgID {
		t.Errorf("client ids not unique: %q %q", a.ClientMsgID, b.ClientMsgID)
	}
	if a.State != model.Pending {
		t.Errorf("state = %q, want pending", a.State)
	}
	waitCalls(t, m, 2)

	// Ids are never reused, even after removal.
	if err := tr.Dismiss(a.ID); !errors.Is(err, ErrNotFailed) {
		t.Errorf("dismiss pending: err = %v, want ErrNotFailed", err)
	}
	tr.Confirm(model.Message{RowID: 5, ChatID: 1, IsFromMe: true, Text: "one"})
	c := tr.Submit(ctx, 1, "+1555", "three")
	if c.ID != -3 {
		t.Errorf("next id = %d, want -3", c.ID)
	}
}

func TestFailedSendThenRetry(t *testing.T) {
	m := &mockSender{err: errors.New("gateway down")}
	l := newLoop()
	notified := 0
	tr := NewTracker(m, l.post, func() { notified++ }, nil)
	ctx := context.Background()

	e := tr.Submit(ctx, 1, "+1555", "hello")
	l.drainOne(t)

	got := tr.Entries(1)
	if len(got) != 1 || got[0].State != model.Failed {
		t.Fatalf("entries = %+v, want one failed", got)
	}
	if notified != 1 {
		t.Errorf("notified = %d, want 1", notified)
	}

	m.mu.Lock()
	m.err = nil
	m.mu.Unlock()
	if err := tr.Retry(ctx, e.ID); err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	waitCalls(t, m, 2)
	if got := tr.Entries(1); got[0].State != model.Pending {
		t.Errorf("state after retry = %q, want pending", got[0].State)
	}
	// Success keeps the entry pending until the feed confirms it.
	if tr.Len() != 1 {
		t.Errorf("len = %d, want 1", tr.Len())
	}
}

func TestRetryRequiresFailed(t *testing.T) {
	tr := NewTracker(&mockSender{}, newLoop().post, nil, nil)
	if err := tr.Retry(context.Background(), -9); !errors.Is(err, ErrUnknownEntry) {
		t.Errorf("err = %v, want ErrUnknownEntry", err)
	}
	e := tr.Submit(context.Background(), 1, "r", "x")
	if err := tr.Retry(context.Background(), e.ID); !errors.Is(err, ErrNotFailed) {
		t.Errorf("err = %v, want ErrNotFailed", err)
	}
}

func TestDismissRemovesFailed(t *testing.T) {
	m := &mockSender{err: errors.New("boom")}
	l := newLoop()
	tr := NewTracker(m, l.post, nil, nil)

	e := tr.Submit(context.Background(), 1, "r", "bye")
	l.drainOne(t)
	if err := tr.Dismiss(e.ID); err != nil {
		t.Fatalf("Dismiss() error = %v", err)
	}
	if tr.Len() != 0 {
		t.Errorf("len = %d, want 0", tr.Len())
	}
	if _, ok := tr.Confirm(model.Message{ChatID: 1, IsFromMe: true, Text: "bye"}); ok {
		t.Error("dismissed entry was matched")
	}
}

func TestConfirmRemovesOldestIdenticalPending(t *testing.T) {
	tr := NewTracker(&mockSender{}, newLoop().post, nil, nil)
	ctx := context.Background()
	first := tr.Submit(ctx, 1, "r", "same")
	tr.Submit(ctx, 1, "r", "other")
	second := tr.Submit(ctx, 1, "r", "same")

	removed, ok := tr.Confirm(model.Message{RowID: 100, ChatID: 1, IsFromMe: true, Text: "same"})
	if !ok || removed.ID != first.ID {
		t.Fatalf("removed = %+v, want id %d", removed, first.ID)
	}
	entries := tr.Entries(1)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.ID == first.ID {
			t.Error("oldest entry still present")
		}
	}
	if entries[1].ID != second.ID {
		t.Errorf("remaining order = %+v", entries)
	}
}

func TestConfirmIgnoresOthersAndTapbacks(t *testing.T) {
	tr := NewTracker(&mockSender{}, newLoop().post, nil, nil)
	tr.Submit(context.Background(), 1, "r", "hi")

	cases := []model.Message{
		{ChatID: 1, IsFromMe: false, Text: "hi"},
		{ChatID: 1, IsFromMe: true, Text: "hi", TapbackType: "like"},
		{ChatID: 2, IsFromMe: true, Text: "hi"},
		{ChatID: 1, IsFromMe: true, Text: "hi!"},
	}
	for _, m := range cases {
		if _, ok := tr.Confirm(m); ok {
			t.Errorf("Confirm(%+v) matched", m)
		}
	}
	if tr.Len() != 1 {
		t.Errorf("len = %d, want 1", tr.Len())
	}
}

func TestPlaceholders(t *testing.T) {
	tr := NewTracker(&mockSender{}, newLoop().post, nil, nil)
	tr.Submit(context.Background(), 1, "r", "a")
	tr.Submit(context.Background(), 2, "r", "b")

	ph := tr.Placeholders(1)
	if len(ph) != 1 {
		t.Fatalf("placeholders = %d, want 1", len(ph))
	}
	if ph[0].RowID != -1 || !ph[0].IsFromMe || ph[0].Status != model.Pending {
		t.Errorf("placeholder = %+v", ph[0])
	}
}
