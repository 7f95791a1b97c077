package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/tui/ui"
)

// ConversationInfo shows the details of one conversation.
type ConversationInfo struct {
	*tview.TextView
	theme *ui.Theme
}

// NewConversationInfo creates the details page.
func NewConversationInfo(theme *ui.Theme) *ConversationInfo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)
	return &ConversationInfo{TextView: tv, theme: theme}
}

// Update renders chat. Handles without a resolved contact are masked.
func (ci *ConversationInfo) Update(chat model.Chat) {
	ci.Clear()
	name := chatlist.DisplayName(chat)
	ci.SetTitle(" " + tview.Escape(name) + " ")

	kind := "Direct message"
	if chat.IsGroup() {
		kind = "Group"
	}
	last := "-"
	if !chat.LastMessageTime.IsZero() {
		last = chat.LastMessageTime.Local().Format("Mon Jan 2 2006, 15:04")
	}

	fg, val := ui.Tag(ci.theme.FgColor), ui.Tag(ci.theme.CounterColor)
	field := func(label, value string) {
		_, _ = fmt.Fprintf(ci, " [%s::b]%-13s[-:-:-] [%s]%s[-]\n", fg, label+":", val, clean(value))
	}
	_, _ = fmt.Fprintln(ci)
	field("Name", name)
	field("Type", kind)
	field("Chat ID", fmt.Sprint(chat.RowID))
	field("Recipient", chatlist.MaskHandle(chat.Recipient()))
	field("Unread", fmt.Sprint(chat.Unread))
	field("Last active", last)
	if chat.IsGroup() {
		field("Members", strings.Join(members(chat), ", "))
	}
}

func members(chat model.Chat) []string {
	names := make([]string, 0, len(chat.Participants))
	for _, h := range chat.Participants {
		name := chatlist.MaskHandle(h)
		for _, p := range chat.ParticipantContacts {
			if p.Handle == h && p.Contact != nil {
				name = p.Contact.DisplayName()
			}
		}
		names = append(names, name)
	}
	return names
}
