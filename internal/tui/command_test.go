package tui

import (
	"testing"

	"github.com/matheus3301/msgview/internal/chatlist"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want Command
	}{
		{"quit", Command{Name: "quit"}},
		{"q", Command{Name: "quit"}},
		{":search  dinner plans ", Command{Name: "search", Args: "dinner plans"}},
		{"Chat Alice", Command{Name: "chat", Args: "Alice"}},
		{"", Command{}},
	}
	for _, tt := range tests {
		if got := ParseCommand(tt.in); got != tt.want {
			t.Errorf("ParseCommand(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestFindChat(t *testing.T) {
	rows := []chatlist.Row{
		{ChatID: 7, Name: "Alice Cooper"},
		{ChatID: 3, Name: "Al"},
		{ChatID: 9, Name: "Family (Alice, Bob)"},
	}
	tests := []struct {
		arg    string
		want   int64
		wantOK bool
	}{
		{"al", 3, true},
		{"ali", 7, true},
		{"bob", 9, true},
		{"2", 3, true},
		{"4", 0, false},
		{"zed", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := findChat(rows, tt.arg)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("findChat(%q) = %d, %v, want %d, %v", tt.arg, got, ok, tt.want, tt.wantOK)
		}
	}
}
