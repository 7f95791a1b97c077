package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"
)

// MenuHint is a key shortcut shown in the header.
type MenuHint struct {
	Key         string
	Description string
}

// Crumbs shows the page stack as a breadcrumb trail.
type Crumbs struct {
	*tview.TextView
	theme *Theme
}

// NewCrumbs creates a breadcrumb bar.
func NewCrumbs(theme *Theme) *Crumbs {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	return &Crumbs{TextView: tv, theme: theme}
}

// Update renders stack with the last entry highlighted.
func (c *Crumbs) Update(stack []string) {
	c.Clear()
	parts := make([]string, 0, len(stack))
	for i, name := range stack {
		fg, bg, attr := c.theme.CrumbInactiveFg, c.theme.CrumbInactiveBg, ""
		if i == len(stack)-1 {
			fg, bg, attr = c.theme.CrumbActiveFg, c.theme.CrumbActiveBg, "b"
		}
		parts = append(parts, fmt.Sprintf("[%s:%s:%s] %s [-:-:-]", Tag(fg), Tag(bg), attr, tview.Escape(name)))
	}
	_, _ = fmt.Fprint(c, strings.Join(parts, " "))
}

// Menu lists the shortcuts of the current page.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a shortcut list.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)
	return &Menu{TextView: tv, theme: theme}
}

// Update renders one hint per line.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()
	kc := Tag(m.theme.MenuKeyColor)
	for _, h := range hints {
		_, _ = fmt.Fprintf(m, "[%s::b]<%s>[-:-:-] %s\n", kc, tview.Escape(h.Key), h.Description)
	}
}

// Logo is the application banner.
type Logo struct {
	*tview.TextView
}

// NewLogo creates the banner.
func NewLogo(theme *Theme) *Logo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(1, 0, 1, 0)
	tc := Tag(theme.TitleColor)
	_, _ = fmt.Fprintf(tv,
		"[%s::b]┌┬┐┌─┐┌─┐[-:-:-]\n"+
			"[%s::b]│││└─┐│ ┬[-:-:-]\n"+
			"[%s::b]┴ ┴└─┘└─┘[-:-:-]\n"+
			"[%s]msgview[-:-:-]",
		tc, tc, tc, Tag(theme.FgColor))
	return &Logo{TextView: tv}
}

// ProfileData is shown in the header info panel.
type ProfileData struct {
	Profile string
	Gateway string
	Feed    string
	Online  bool
	Chats   int
	Unread  int
	Uptime  time.Duration
}

// ProfileInfo displays the running profile and gateway.
type ProfileInfo struct {
	*tview.TextView
	theme *Theme
}

// NewProfileInfo creates the info panel.
func NewProfileInfo(theme *Theme) *ProfileInfo {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 1, 1)
	return &ProfileInfo{TextView: tv, theme: theme}
}

// Update renders d.
func (pi *ProfileInfo) Update(d ProfileData) {
	pi.Clear()
	fg, val := Tag(pi.theme.FgColor), Tag(pi.theme.CounterColor)
	feed := Tag(pi.theme.OfflineColor)
	if d.Online {
		feed = Tag(pi.theme.OnlineColor)
	}
	_, _ = fmt.Fprintf(pi,
		"[%s::b]Profile:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Gateway:[-:-:-] [%s]%s[-]\n"+
			"[%s::b]Feed:[-:-:-]    [%s]%s[-]\n"+
			"[%s::b]Chats:[-:-:-]   [%s]%d[-] ([%s]%d unread[-])\n"+
			"[%s::b]Uptime:[-:-:-]  [%s]%s[-]",
		fg, val, tview.Escape(d.Profile),
		fg, val, tview.Escape(d.Gateway),
		fg, feed, d.Feed,
		fg, val, d.Chats, val, d.Unread,
		fg, val, FormatUptime(d.Uptime),
	)
}

// FormatUptime renders d as "3h7m" or "12m".
func FormatUptime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
