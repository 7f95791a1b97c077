package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/tui/ui"
)

// HelpSection is a titled group of key hints.
type HelpSection struct {
	Title string
	Hints []ui.MenuHint
}

// HelpView lists every binding.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates the help page.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)
	return &HelpView{TextView: tv, theme: theme}
}

// Update renders sections followed by the command reference.
func (hv *HelpView) Update(sections []HelpSection) {
	hv.Clear()
	kc := ui.Tag(hv.theme.MenuKeyColor)
	var b strings.Builder
	for _, s := range sections {
		fmt.Fprintf(&b, "\n  [::b]%s[-:-:-]\n\n", s.Title)
		for _, h := range s.Hints {
			fmt.Fprintf(&b, "  [%s]%-10s[-] %s\n", kc, tview.Escape(h.Key), h.Description)
		}
	}
	fmt.Fprintf(&b, "\n  [::b]Commands[-:-:-]\n\n")
	for _, c := range CommandHelp {
		fmt.Fprintf(&b, "  [%s]:%-18s[-] %s\n", kc, tview.Escape(c.Key), c.Description)
	}
	_, _ = fmt.Fprint(hv, b.String())
	hv.ScrollToBeginning()
}

// CommandHelp documents the ":" commands.
var CommandHelp = []ui.MenuHint{
	{Key: "chat <name|n>", Description: "Open a conversation by name or list position"},
	{Key: "search <query>", Description: "Search messages"},
	{Key: "filter <text>", Description: "Filter the conversation list"},
	{Key: "info", Description: "Show details of the open conversation"},
	{Key: "reload", Description: "Reload conversations and the open thread"},
	{Key: "reconnect", Description: "Reconnect the live feed"},
	{Key: "help", Description: "Show this help"},
	{Key: "quit", Description: "Quit"},
}
