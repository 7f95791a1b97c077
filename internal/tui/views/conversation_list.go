package views

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/tui/ui"
)

// ConversationList is the table of conversations, most recent first.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	rows    []chatlist.Row
	visible []chatlist.Row
	filter  string
}

// NewConversationList creates the conversation table.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{Table: table, theme: theme}
	cl.render()
	return cl
}

// Hints lists the page shortcuts handled by the list itself.
func (cl *ConversationList) Hints() []ui.MenuHint {
	return []ui.MenuHint{{Key: "Enter", Description: "Open"}, {Key: "1-9", Description: "Jump"}}
}

// Update replaces the rows, keeping the selection on the same conversation.
func (cl *ConversationList) Update(rows []chatlist.Row) {
	selected := cl.SelectedChat()
	cl.rows = rows
	cl.render()
	if selected != 0 {
		cl.SelectChat(selected)
	}
}

// SetFilter shows only rows whose name or preview contains text.
func (cl *ConversationList) SetFilter(text string) {
	cl.filter = strings.TrimSpace(text)
	cl.render()
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) matches(r chatlist.Row) bool {
	if cl.filter == "" {
		return true
	}
	f := strings.ToLower(cl.filter)
	return strings.Contains(strings.ToLower(r.Name), f) || strings.Contains(strings.ToLower(r.Preview), f)
}

func (cl *ConversationList) render() {
	cl.Clear()
	headers := []struct {
		text string
		exp  int
	}{{" NAME", 1}, {" LAST MESSAGE", 2}, {" TIME", 0}, {" TYPE", 0}}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	for _, r := range cl.rows {
		if !cl.matches(r) {
			continue
		}
		cl.visible = append(cl.visible, r)
		row := len(cl.visible)

		name, color := clean(r.Name), cl.theme.FgColor
		if r.Unread > 0 {
			name = fmt.Sprintf("(%d) %s", r.Unread, name)
			color = cl.theme.UnreadColor
		}
		kind := "DM"
		if r.Group {
			kind = "GROUP"
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+name).SetExpansion(1).SetTextColor(color))
		cl.SetCell(row, 1, tview.NewTableCell(" "+clean(r.Preview)).SetExpansion(2).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 2, tview.NewTableCell(" "+r.Label).SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
		cl.SetCell(row, 3, tview.NewTableCell(" "+kind).SetAlign(tview.AlignRight).SetTextColor(cl.theme.FgColor))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) /%s ", len(cl.visible), len(cl.rows), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.rows)))
	}
}

// SelectedChat returns the chat id of the selected row, or 0.
func (cl *ConversationList) SelectedChat() int64 {
	row, _ := cl.GetSelection()
	return cl.ChatByIndex(row)
}

// ChatByIndex returns the chat id of the nth visible row (1-based), or 0.
func (cl *ConversationList) ChatByIndex(n int) int64 {
	if n < 1 || n > len(cl.visible) {
		return 0
	}
	return cl.visible[n-1].ChatID
}

// SelectChat moves the cursor to chatID if it is visible.
func (cl *ConversationList) SelectChat(chatID int64) {
	for i, r := range cl.visible {
		if r.ChatID == chatID {
			cl.Select(i+1, 0)
			return
		}
	}
}

// Row returns the row of chatID.
func (cl *ConversationList) Row(chatID int64) (chatlist.Row, bool) {
	for _, r := range cl.rows {
		if r.ChatID == chatID {
			return r, true
		}
	}
	return chatlist.Row{}, false
}

// Unread sums unread counts over all rows.
func (cl *ConversationList) Unread() int {
	n := 0
	for _, r := range cl.rows {
		n += r.Unread
	}
	return n
}

// Len returns the number of conversations.
func (cl *ConversationList) Len() int { return len(cl.rows) }

// Visible returns the rows passing the filter, in display order.
func (cl *ConversationList) Visible() []chatlist.Row {
	return slices.Clone(cl.visible)
}
