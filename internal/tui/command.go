package tui

import (
	"strconv"
	"strings"

	"github.com/matheus3301/msgview/internal/chatlist"
)

// Command is a parsed ":" command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command line without its leading ':'. Aliases map to
// their full names.
func ParseCommand(input string) Command {
	input = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(input), ":"))
	name, args, _ := strings.Cut(input, " ")
	cmd := Command{Name: strings.ToLower(name), Args: strings.TrimSpace(args)}
	if full, ok := commandAliases[cmd.Name]; ok {
		cmd.Name = full
	}
	return cmd
}

var commandAliases = map[string]string{
	"q":  "quit",
	"h":  "help",
	"s":  "search",
	"c":  "chat",
	"f":  "filter",
	"rc": "reconnect",
	"n":  "new",
}

// findChat resolves a ":chat" argument against the visible conversation
// list: a number selects by position (1-based), anything else matches names
// case-insensitively, an exact match winning over a prefix over a substring.
func findChat(rows []chatlist.Row, arg string) (int64, bool) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(arg); err == nil {
		if n >= 1 && n <= len(rows) {
			return rows[n-1].ChatID, true
		}
		return 0, false
	}

	want := strings.ToLower(arg)
	best, bestRank := int64(0), 0
	for _, r := range rows {
		name := strings.ToLower(r.Name)
		rank := 0
		switch {
		case name == want:
			rank = 3
		case strings.HasPrefix(name, want):
			rank = 2
		case strings.Contains(name, want):
			rank = 1
		}
		if rank > bestRank {
			best, bestRank = r.ChatID, rank
		}
	}
	return best, bestRank > 0
}
