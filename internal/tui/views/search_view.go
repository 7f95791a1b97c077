package views

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/model"
	intsync "github.com/matheus3301/msgview/internal/sync"
	"github.com/matheus3301/msgview/internal/tui/ui"
)

const snippetWidth = 60

// SearchView is the message search page: a query input above a result table.
type SearchView struct {
	*tview.Flex
	theme   *ui.Theme
	input   *tview.InputField
	results *tview.Table
	data    intsync.SearchView
	now     func() time.Time

	onQuery  func(query string)
	onMore   func()
	onSelect func(m model.Message)
}

// NewSearchView creates the search page.
func NewSearchView(theme *ui.Theme) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true)
	results.SetBorderColor(theme.BorderColor)
	results.SetBackgroundColor(theme.BgColor)
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	sv := &SearchView{
		Flex:    flex,
		theme:   theme,
		input:   input,
		results: results,
		now:     time.Now,
	}
	input.SetChangedFunc(func(text string) {
		if sv.onQuery != nil {
			sv.onQuery(text)
		}
	})
	results.SetSelectionChangedFunc(func(row, _ int) {
		if row >= len(sv.data.Results) && sv.data.HasMore && !sv.data.Loading && sv.onMore != nil {
			sv.onMore()
		}
	})
	results.SetSelectedFunc(func(row, _ int) {
		if m, ok := sv.Selected(); ok && sv.onSelect != nil {
			sv.onSelect(m)
		}
	})
	sv.render()
	return sv
}

// SetOnQuery registers the callback run on every edit of the query.
func (sv *SearchView) SetOnQuery(fn func(query string)) { sv.onQuery = fn }

// SetOnMore registers the callback run when the cursor reaches the last
// result and more are available.
func (sv *SearchView) SetOnMore(fn func()) { sv.onMore = fn }

// SetOnSelect registers the callback run when a result is opened.
func (sv *SearchView) SetOnSelect(fn func(m model.Message)) { sv.onSelect = fn }

// Update renders the search state. Results for a query other than the one
// in the input are ignored.
func (sv *SearchView) Update(v intsync.SearchView) {
	if v.Query != "" && v.Query != trimmed(sv.input.GetText()) {
		return
	}
	sv.data = v
	sv.render()
}

func (sv *SearchView) render() {
	row, _ := sv.results.GetSelection()
	sv.results.Clear()
	for col, h := range []string{" CHAT", " MESSAGE", " TIME"} {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetBackgroundColor(sv.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold))
	}

	now := sv.now()
	for i, r := range sv.data.Results {
		m := r.Message
		chat := r.ChatName
		if chat == "" {
			chat = fmt.Sprintf("chat %d", m.ChatID)
		}
		text := intsync.Snippet(m.DisplayText(), sv.data.Query, snippetWidth)
		sv.results.SetCell(i+1, 0, tview.NewTableCell(" "+clean(chat)).SetMaxWidth(25).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(i+1, 1, tview.NewTableCell(" "+clean(text)).SetExpansion(1).SetTextColor(sv.theme.FgColor))
		sv.results.SetCell(i+1, 2, tview.NewTableCell(" "+chatlist.RelativeLabel(m.Timestamp, now)).SetTextColor(sv.theme.FgColor))
	}
	if row > 0 && row <= len(sv.data.Results) {
		sv.results.Select(row, 0)
	}

	title := fmt.Sprintf(" Results (%d) ", len(sv.data.Results))
	switch {
	case sv.data.Error != "":
		title = " " + tview.Escape(sv.data.Error) + " "
	case sv.data.Loading:
		title = fmt.Sprintf(" Results (%d, searching) ", len(sv.data.Results))
	case sv.data.HasMore:
		title = fmt.Sprintf(" Results (%d+) ", len(sv.data.Results))
	}
	sv.results.SetTitle(title)
}

// Selected returns the message under the cursor.
func (sv *SearchView) Selected() (model.Message, bool) {
	row, _ := sv.results.GetSelection()
	if row < 1 || row > len(sv.data.Results) {
		return model.Message{}, false
	}
	return sv.data.Results[row-1].Message, true
}

// Input returns the query input.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the result table.
func (sv *SearchView) Results() *tview.Table { return sv.results }
