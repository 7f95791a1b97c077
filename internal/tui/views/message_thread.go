package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/pagination"
	"github.com/matheus3301/msgview/internal/timeline"
	"github.com/matheus3301/msgview/internal/tui/ui"
)

const (
	gutter       = 6
	defaultWidth = 80
)

var _ pagination.Viewport = (*MessageThread)(nil)

// MessageThread shows the open conversation and the composer.
type MessageThread struct {
	*tview.Flex
	theme    *ui.Theme
	messages *tview.TextView
	composer *tview.InputField

	chatID   int64
	chatName string
	view     timeline.View
	lines    []string
	width    int
	now      func() time.Time

	onSend   func(text string)
	onCancel func()
}

// NewMessageThread creates the thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	messages := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWrap(false)
	messages.SetBorder(true)
	messages.SetBorderColor(theme.BorderColor)
	messages.SetBackgroundColor(theme.BgColor)
	messages.SetTextColor(theme.FgColor)
	messages.SetTitleColor(theme.TitleColor)

	composer := tview.NewInputField().
		SetLabel(" > ").
		SetFieldWidth(0)
	composer.SetBorder(true)
	composer.SetBorderColor(theme.BorderColor)
	composer.SetBackgroundColor(theme.BgColor)
	composer.SetFieldBackgroundColor(theme.BgColor)
	composer.SetFieldTextColor(theme.FgColor)
	composer.SetLabelColor(theme.MenuKeyColor)
	composer.SetTitle(" Compose (i) ")
	composer.SetTitleColor(theme.TitleColor)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(messages, 0, 1, true).
		AddItem(composer, 3, 0, false)

	mt := &MessageThread{
		Flex:     flex,
		theme:    theme,
		messages: messages,
		composer: composer,
		now:      time.Now,
	}
	composer.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			text := strings.TrimSpace(composer.GetText())
			if text != "" && mt.onSend != nil {
				mt.onSend(text)
				composer.SetText("")
			}
		case tcell.KeyEscape:
			if mt.onCancel != nil {
				mt.onCancel()
			}
		}
	})
	mt.setTitle()
	return mt
}

// SetOnSend registers the composer submit callback.
func (mt *MessageThread) SetOnSend(fn func(text string)) { mt.onSend = fn }

// SetOnCancel registers the composer Esc callback.
func (mt *MessageThread) SetOnCancel(fn func()) { mt.onCancel = fn }

// Open switches the thread to a conversation and clears it.
func (mt *MessageThread) Open(chatID int64, name string) {
	mt.chatID = chatID
	mt.chatName = name
	mt.view = timeline.View{ChatID: chatID, Loading: true}
	mt.composer.SetText("")
	mt.redraw()
	mt.setTitle()
}

// SetChatName updates the title.
func (mt *MessageThread) SetChatName(name string) {
	mt.chatName = name
	mt.setTitle()
}

// ChatID returns the open conversation.
func (mt *MessageThread) ChatID() int64 { return mt.chatID }

// Name returns the conversation name for breadcrumbs.
func (mt *MessageThread) Name() string {
	if mt.chatName == "" {
		return "Messages"
	}
	return mt.chatName
}

func (mt *MessageThread) setTitle() {
	title := " " + tview.Escape(mt.Name()) + " "
	switch {
	case mt.view.Loading:
		title += "(loading) "
	case mt.view.HasMore:
		title += "(PgUp for older) "
	}
	mt.messages.SetTitle(title)
}

// Update renders v. Older history prepended above the visible rows keeps
// them in place; ScrollToBottom jumps to the newest message.
func (mt *MessageThread) Update(v timeline.View) {
	if v.ChatID != mt.chatID {
		return
	}
	anchor := pagination.Capture(mt)
	mt.view = v
	mt.redraw()
	switch {
	case v.ScrollToBottom:
		mt.messages.ScrollToEnd()
	case v.Prepended:
		anchor.Restore(mt)
	}
	mt.setTitle()
}

// NeedsRewrap reports whether the view width changed since the last render.
func (mt *MessageThread) NeedsRewrap() bool {
	return mt.innerWidth() != mt.width
}

// Rewrap re-renders the content at the current width. It reports whether
// anything was redrawn.
func (mt *MessageThread) Rewrap() bool {
	if !mt.NeedsRewrap() {
		return false
	}
	anchor := pagination.Capture(mt)
	mt.redraw()
	anchor.Restore(mt)
	return true
}

func (mt *MessageThread) innerWidth() int {
	_, _, w, _ := mt.messages.GetInnerRect()
	if w <= 0 {
		return defaultWidth
	}
	return w
}

func (mt *MessageThread) redraw() {
	mt.width = mt.innerWidth()
	mt.lines = renderLines(mt.view, mt.theme, mt.width, mt.now())
	mt.messages.SetText(strings.Join(mt.lines, "\n"))
}

// LatestFailed returns the synthetic id of the newest failed send.
func (mt *MessageThread) LatestFailed() (int64, bool) {
	for i := len(mt.view.Items) - 1; i >= 0; i-- {
		it := mt.view.Items[i]
		if it.Kind == timeline.ItemMessage && it.Message.Status == model.Failed {
			return it.Message.RowID, true
		}
	}
	return 0, false
}

// ScrollOffset implements pagination.Viewport.
func (mt *MessageThread) ScrollOffset() int {
	row, _ := mt.messages.GetScrollOffset()
	return row
}

// ContentHeight implements pagination.Viewport.
func (mt *MessageThread) ContentHeight() int { return len(mt.lines) }

// SetScrollOffset implements pagination.Viewport.
func (mt *MessageThread) SetScrollOffset(row int) { mt.messages.ScrollTo(row, 0) }

// Messages returns the message text view for focus handling.
func (mt *MessageThread) Messages() *tview.TextView { return mt.messages }

// Composer returns the composer for focus handling.
func (mt *MessageThread) Composer() *tview.InputField { return mt.composer }

// renderLines lays out a timeline view as tview-tagged lines of at most
// width cells.
func renderLines(v timeline.View, theme *ui.Theme, width int, now time.Time) []string {
	var lines []string
	if v.Error != "" {
		lines = append(lines, fmt.Sprintf("[%s]%s[-]", ui.Tag(theme.FailedColor), clean(v.Error)))
	}
	if v.Loading && len(v.Items) == 0 {
		lines = append(lines, fmt.Sprintf("[%s]Loading messages...[-]", ui.Tag(theme.PendingColor)))
	}
	if v.HasMore && len(v.Items) > 0 {
		lines = append(lines, center("older messages above", width, theme.SeparatorColor))
	}

	bodyWidth := max(width-gutter, 10)
	pad := strings.Repeat(" ", gutter)
	for _, it := range v.Items {
		if it.Kind == timeline.ItemSeparator {
			lines = append(lines, center(separatorLabel(it.Time, now), width, theme.SeparatorColor))
			continue
		}
		m := it.Message
		if it.Sender != "" {
			lines = append(lines, fmt.Sprintf("[%s::b]%s[-:-:-]", ui.Tag(theme.SenderColor), clean(it.Sender)))
		}

		color := theme.FgColor
		if m.IsFromMe {
			color = theme.SelfColor
		}
		stamp := m.Timestamp.Format("15:04")
		for i, l := range wrap(sanitizeForTerminal(m.DisplayText()), bodyWidth) {
			prefix := pad
			if i == 0 {
				prefix = fmt.Sprintf("%-*s", gutter, stamp)
			}
			lines = append(lines, fmt.Sprintf("[%s]%s[-][%s]%s[-]", ui.Tag(theme.SeparatorColor), prefix, ui.Tag(color), tview.Escape(l)))
		}

		switch m.Status {
		case model.Pending:
			lines = append(lines, fmt.Sprintf("%s[%s]sending...[-]", pad, ui.Tag(theme.PendingColor)))
		case model.Failed:
			lines = append(lines, fmt.Sprintf("%s[%s]not delivered: r retry, x dismiss[-]", pad, ui.Tag(theme.FailedColor)))
		}
		if len(it.Reactions) > 0 {
			lines = append(lines, pad+reactionLine(it.Reactions, theme))
		}
	}
	return lines
}

func reactionLine(rs []timeline.Reaction, theme *ui.Theme) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		attr := ""
		if r.Mine {
			attr = "b"
		}
		parts = append(parts, fmt.Sprintf("[%s::%s]%s[-:-:-]", ui.Tag(theme.ReactionColor), attr, tview.Escape(sanitizeForTerminal(r.Label()))))
	}
	return strings.Join(parts, "  ")
}

func separatorLabel(t, now time.Time) string {
	t = t.In(now.Location())
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return "Today " + t.Format("15:04")
	}
	if t.Year() == now.Year() {
		return t.Format("Mon Jan 2, 15:04")
	}
	return t.Format("Jan 2 2006, 15:04")
}

func center(label string, width int, color tcell.Color) string {
	text := "── " + label + " ──"
	n := max((width-len([]rune(text)))/2, 0)
	return fmt.Sprintf("%s[%s]%s[-]", strings.Repeat(" ", n), ui.Tag(color), tview.Escape(text))
}
