package views

import (
	"fmt"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/status"
	"github.com/matheus3301/msgview/internal/tui/ui"
)

// StatusBar shows the profile, the live feed state and the clock.
type StatusBar struct {
	*tview.TextView
	theme   *ui.Theme
	profile string
	state   status.State
	batches int
	now     func() time.Time
}

// NewStatusBar creates the status bar.
func NewStatusBar(theme *ui.Theme, profile string) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	sb := &StatusBar{TextView: tv, theme: theme, profile: profile, state: status.Disconnected, now: time.Now}
	sb.render()
	return sb
}

// SetState updates the feed state.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

// CountBatch records a received feed batch.
func (sb *StatusBar) CountBatch() {
	sb.batches++
	sb.render()
}

// Tick refreshes the clock.
func (sb *StatusBar) Tick() { sb.render() }

func (sb *StatusBar) render() {
	sb.Clear()
	color := sb.theme.OfflineColor
	label := string(sb.state)
	switch sb.state {
	case status.Open:
		color, label = sb.theme.OnlineColor, "LIVE"
	case status.Connecting:
		color = sb.theme.FlashWarnColor
	case status.RetryScheduled:
		label = "RETRYING"
	}
	_, _ = fmt.Fprintf(sb, " [::b]%s[-:-:-] | feed [%s]%s[-] | %d batches | %s",
		tview.Escape(sb.profile), ui.Tag(color), label, sb.batches, sb.now().Format("15:04"))
}
