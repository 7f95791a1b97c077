package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matheus3301/msgview/internal/api"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/model"
)

func TestPrintChatsText(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 30, 0, 0, time.Local)
	now = func() time.Time { return ts.Add(time.Hour) }
	defer func() { now = time.Now }()

	var buf bytes.Buffer
	chats := []model.Chat{{
		RowID: 7, Identifier: "+15551234567", LastMessageText: "see you\nsoon",
		LastMessageTime: ts, Contact: &model.Contact{Handle: "+15551234567", Name: "Alice"},
	}}
	if err := printChats(&buf, chats, false); err != nil {
		t.Fatalf("printChats: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "Alice", "see you soon", "09:30"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintMessagesJSON(t *testing.T) {
	var buf bytes.Buffer
	msgs := []model.Message{
		{RowID: 1, GUID: "A", ChatID: 3, Text: "hi", HandleID: "bob@example.com"},
		{RowID: 2, GUID: "B", ChatID: 3, IsFromMe: true, TapbackType: "like", AssociatedGUID: "p:0/A"},
	}
	if err := printMessages(&buf, msgs, true); err != nil {
		t.Fatalf("printMessages: %v", err)
	}
	var got []messageJSON
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Sender != "bob@example.com" {
		t.Errorf("sender = %q", got[0].Sender)
	}
	if got[1].Sender != "Me" || got[1].Target != "A" {
		t.Errorf("tapback = %+v", got[1])
	}
}

func TestPrintMessageLineTapback(t *testing.T) {
	var buf bytes.Buffer
	m := model.Message{RowID: 5, TapbackType: "love", HandleID: "+1", Timestamp: time.Now()}
	if err := printMessageLine(&buf, m); err != nil {
		t.Fatalf("printMessageLine: %v", err)
	}
	if !strings.Contains(buf.String(), "reacted ❤️") {
		t.Errorf("line = %q", buf.String())
	}
}

func TestPrintSearchHint(t *testing.T) {
	var buf bytes.Buffer
	page := &api.SearchPage{
		Messages: []model.Message{{RowID: 9, ChatID: 1, Text: "dinner?"}},
		Offset:   50,
		HasMore:  true,
	}
	if err := printSearch(&buf, "dinner", page, false); err != nil {
		t.Fatalf("printSearch: %v", err)
	}
	if !strings.Contains(buf.String(), "--offset 51") {
		t.Errorf("missing next offset:\n%s", buf.String())
	}
}

func TestPrintBatch(t *testing.T) {
	var buf bytes.Buffer
	b := feed.Batch{Messages: []model.Message{{RowID: 3, ChatID: 2, Text: "yo", IsFromMe: true}}, LastRowID: 3}
	if err := printBatch(&buf, b, false); err != nil {
		t.Fatalf("printBatch: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "[chat 2] ") || !strings.Contains(buf.String(), "Me: yo") {
		t.Errorf("batch = %q", buf.String())
	}
}

func TestOneLine(t *testing.T) {
	if got := oneLine("a\n b  c", 10); got != "a b c" {
		t.Errorf("oneLine = %q", got)
	}
	if got := oneLine("abcdefghij", 6); got != "abc..." {
		t.Errorf("oneLine = %q", got)
	}
}

func TestRootCommands(t *testing.T) {
	root := newRootCmd(&globals{})
	want := []string{"chats", "contact", "health", "messages", "search", "send", "tail"}
	var got []string
	for _, c := range root.Commands() {
		got = append(got, c.Name())
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("commands = %v, want %v", got, want)
	}
	if root.PersistentFlags().Lookup("json") == nil {
		t.Error("missing --json flag")
	}
}
