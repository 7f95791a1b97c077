// Package tui is the terminal front end. It renders what the sync engine
// publishes on the bus and forwards user input to the engine.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/bus"
	"github.com/matheus3301/msgview/internal/chatlist"
	"github.com/matheus3301/msgview/internal/feed"
	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/status"
	intsync "github.com/matheus3301/msgview/internal/sync"
	"github.com/matheus3301/msgview/internal/timeline"
	"github.com/matheus3301/msgview/internal/tui/keys"
	"github.com/matheus3301/msgview/internal/tui/ui"
	"github.com/matheus3301/msgview/internal/tui/views"
)

// Page names.
const (
	pageChats   = "Conversations"
	pageThread  = "Thread"
	pageSearch  = "Search"
	pageHelp    = "Help"
	pageDetails = "Details"
	pageCompose = "New Message"
)

// idleAfter is how long without input before the user counts as away and
// new messages raise notifications.
const idleAfter = time.Minute

// Deps are the running client components the TUI drives.
type Deps struct {
	Engine  *intsync.Engine
	Bus     *bus.Bus
	Router  *feed.Router
	Profile string
	Gateway string
}

// App is the TUI application shell.
type App struct {
	app      *tview.Application
	deps     Deps
	theme    *ui.Theme
	registry *keys.Registry
	flash    *ui.FlashModel

	root      *tview.Flex
	pages     *ui.Pages
	crumbs    *ui.Crumbs
	menu      *ui.Menu
	info      *ui.ProfileInfo
	prompt    *ui.Prompt
	flashBar  *ui.FlashBar
	statusBar *views.StatusBar

	chats   *views.ConversationList
	thread  *views.MessageThread
	search  *views.SearchView
	help    *views.HelpView
	details *views.ConversationInfo
	compose *views.ComposeView

	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	// Touched only on the tview goroutine.
	feedState  status.State
	lastInput  time.Time
	idle      bool
	scroll    *scrollReporter
}

// NewApp creates the TUI.
func NewApp(d Deps) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()
	a := &App{
		app:       tview.NewApplication(),
		deps:      d,
		theme:     theme,
		registry:  keys.NewRegistry(),
		flash:     ui.NewFlashModel(),
		pages:     ui.NewPages(),
		crumbs:    ui.NewCrumbs(theme),
		menu:      ui.NewMenu(theme),
		info:      ui.NewProfileInfo(theme),
		prompt:    ui.NewPrompt(theme),
		flashBar:  ui.NewFlashBar(theme),
		statusBar: views.NewStatusBar(theme, d.Profile),
		chats:     views.NewConversationList(theme),
		thread:    views.NewMessageThread(theme),
		search:    views.NewSearchView(theme),
		help:      views.NewHelpView(theme),
		details:   views.NewConversationInfo(theme),
		compose:   views.NewComposeView(theme),
		ctx:       ctx,
		cancel:    cancel,
		started:   time.Now(),
		feedState: status.Disconnected,
		lastInput: time.Now(),
		scroll:    newScrollReporter(d.Engine.ScrolledTo),
	}
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()
	return a
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Key: tcell.KeyRune, Rune: 'q', Description: "Quit",
		Handler: a.app.Stop,
	})
	a.registry.AddGlobal("search", &keys.Action{
		Key: tcell.KeyRune, Rune: '/', Description: "Search",
		Handler: a.showSearch,
	})
	a.registry.AddGlobal("command", &keys.Action{
		Key: tcell.KeyRune, Rune: ':', Description: "Command",
		Handler: func() { a.showPrompt(ui.PromptCommand) },
	})
	a.registry.AddGlobal("new", &keys.Action{
		Key: tcell.KeyRune, Rune: 'n', Description: "New message",
		Handler: a.showCompose,
	})
	a.registry.AddGlobal("help", &keys.Action{
		Key: tcell.KeyRune, Rune: '?', Description: "Help",
		Handler: a.showHelp,
	})
	a.registry.AddGlobal("back", &keys.Action{
		Key: tcell.KeyEscape, Label: "Esc", Description: "Back",
		Handler: a.back,
	})

	a.registry.AddPage(pageChats, "filter", &keys.Action{
		Key: tcell.KeyRune, Rune: 'f', Description: "Filter",
		Handler: func() { a.showPrompt(ui.PromptFilter) },
	})
	a.registry.AddPage(pageChats, "details", &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details",
		Handler: func() { a.showDetails(a.chats.SelectedChat()) },
	})
	for n := 1; n <= 9; n++ {
		a.registry.AddPage(pageChats, fmt.Sprintf("jump%d", n), &keys.Action{
			Key: tcell.KeyRune, Rune: rune('0' + n), Hidden: true,
			Handler: func() {
				if id := a.chats.ChatByIndex(n); id != 0 {
					a.openChat(id)
				}
			},
		})
	}

	a.registry.AddPage(pageThread, "compose", &keys.Action{
		Key: tcell.KeyRune, Rune: 'i', Description: "Compose",
		Handler: func() { a.app.SetFocus(a.thread.Composer()) },
	})
	a.registry.AddPage(pageThread, "retry", &keys.Action{
		Key: tcell.KeyRune, Rune: 'r', Description: "Retry failed",
		Handler: func() {
			if id, ok := a.thread.LatestFailed(); ok {
				a.deps.Engine.Retry(id)
			}
		},
	})
	a.registry.AddPage(pageThread, "dismiss", &keys.Action{
		Key: tcell.KeyRune, Rune: 'x', Description: "Dismiss failed",
		Handler: func() {
			if id, ok := a.thread.LatestFailed(); ok {
				a.deps.Engine.Dismiss(id)
			}
		},
	})
	a.registry.AddPage(pageThread, "older", &keys.Action{
		Key: tcell.KeyCtrlU, Label: "Ctrl-U", Description: "Load older",
		Handler: a.deps.Engine.LoadOlder,
	})
	a.registry.AddPage(pageThread, "details", &keys.Action{
		Key: tcell.KeyRune, Rune: 'd', Description: "Details",
		Handler: func() { a.showDetails(a.thread.ChatID()) },
	})
}

func (a *App) setupCallbacks() {
	a.pages.SetOnChange(func(stack []string) {
		crumbs := make([]string, len(stack))
		for i, name := range stack {
			crumbs[i] = name
			if name == pageThread {
				crumbs[i] = a.thread.Name()
			}
		}
		a.crumbs.Update(crumbs)
		hints := a.registry.Hints(a.pages.Current())
		if a.pages.Current() == pageChats {
			hints = append(a.chats.Hints(), hints...)
		}
		a.menu.Update(hints)
	})

	a.chats.SetSelectedFunc(func(row, _ int) {
		if id := a.chats.ChatByIndex(row); id != 0 {
			a.openChat(id)
		}
	})

	a.thread.SetOnSend(a.deps.Engine.Submit)
	a.thread.SetOnCancel(func() { a.app.SetFocus(a.thread.Messages()) })

	a.compose.SetFocusFunc(func(p tview.Primitive) { a.app.SetFocus(p) })
	a.compose.SetOnSend(a.deps.Engine.SendNew)
	a.compose.SetOnCancel(a.back)

	a.search.SetOnQuery(a.deps.Engine.Search)
	a.search.SetOnMore(a.deps.Engine.SearchMore)
	a.search.SetOnSelect(func(m model.Message) { a.openChat(m.ChatID) })
	a.search.Input().SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEscape:
			a.back()
		case tcell.KeyEnter, tcell.KeyTab, tcell.KeyDown:
			a.app.SetFocus(a.search.Results())
		}
	})

	a.prompt.SetOnChange(func(mode ui.PromptMode, text string) {
		if mode == ui.PromptFilter {
			a.chats.SetFilter(text)
		}
	})
	a.prompt.SetOnSubmit(func(mode ui.PromptMode, text string) {
		a.hidePrompt()
		if mode == ui.PromptCommand {
			a.runCommand(text)
		}
	})
	a.prompt.SetOnCancel(func() {
		if a.prompt.Mode() == ui.PromptFilter {
			a.chats.SetFilter("")
		}
		a.hidePrompt()
	})

	a.help.Update([]views.HelpSection{
		{Title: "Global", Hints: a.registry.Hints("")},
		{Title: "Conversations", Hints: append(a.chats.Hints(), a.pageHints(pageChats)...)},
		{Title: "Thread", Hints: append(a.pageHints(pageThread),
			ui.MenuHint{Key: "PgUp", Description: "Scroll up, older history loads near the top"},
			ui.MenuHint{Key: "Enter", Description: "Send (in composer)"},
			ui.MenuHint{Key: "Esc", Description: "Leave composer"})},
		{Title: "Search", Hints: []ui.MenuHint{
			{Key: "Enter/Tab", Description: "Move to results"},
			{Key: "Enter", Description: "Open the conversation of a result"},
		}},
		{Title: "New Message", Hints: []ui.MenuHint{
			{Key: "Enter", Description: "Next field, send from the message field"},
			{Key: "Esc", Description: "Cancel"},
		}},
	})
}

// pageHints returns only the page bindings of page.
func (a *App) pageHints(page string) []ui.MenuHint {
	all := a.registry.Hints(page)
	global := len(a.registry.Hints(""))
	return all[:len(all)-global]
}

func (a *App) setupLayout() {
	a.pages.AddPage(pageChats, a.chats, true, false)
	a.pages.AddPage(pageThread, a.thread, true, false)
	a.pages.AddPage(pageSearch, a.search, true, false)
	a.pages.AddPage(pageHelp, a.help, true, false)
	a.pages.AddPage(pageDetails, a.details, true, false)
	a.pages.AddPage(pageCompose, a.compose, true, false)

	header := tview.NewFlex().
		AddItem(a.info, 40, 0, false).
		AddItem(a.menu, 0, 1, false).
		AddItem(ui.NewLogo(a.theme), 14, 0, false)

	a.root = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 6, 0, false).
		AddItem(a.prompt, 0, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.flashBar, 1, 0, false).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(a.root, true)
	a.app.SetInputCapture(a.capture)
	a.app.SetAfterDrawFunc(a.afterDraw)
	a.pages.Reset(pageChats)
	a.app.SetFocus(a.chats)
	a.updateInfo()
}

func (a *App) capture(ev *tcell.EventKey) *tcell.EventKey {
	a.lastInput = time.Now()
	if a.idle {
		a.idle = false
		a.deps.Engine.SetFocused(true)
	}
	if a.typing() {
		return ev
	}
	if a.registry.HandleEvent(a.pages.Current(), ev) {
		return nil
	}
	return ev
}

// typing reports whether a text input has focus. Inputs handle their own
// keys, including Esc.
func (a *App) typing() bool {
	switch a.app.GetFocus() {
	case a.prompt, a.thread.Composer(), a.search.Input(),
		a.compose.Recipient(), a.compose.Message():
		return true
	}
	return false
}

// afterDraw reports the thread scroll position so older history loads as
// the top is approached, and re-wraps the thread after a resize.
func (a *App) afterDraw(tcell.Screen) {
	if a.pages.Current() != pageThread {
		return
	}
	a.scroll.Observe(a.thread.ScrollOffset())
	if a.thread.NeedsRewrap() {
		go a.app.QueueUpdateDraw(func() { a.thread.Rewrap() })
	}
}

func (a *App) back() {
	switch a.pages.Current() {
	case pageChats:
		if a.chats.Filter() != "" {
			a.chats.SetFilter("")
		}
		return
	case pageSearch:
		a.deps.Engine.Search("")
	}
	a.pages.Pop()
	a.focusPage()
}

func (a *App) focusPage() {
	switch a.pages.Current() {
	case pageChats:
		a.app.SetFocus(a.chats)
	case pageThread:
		a.app.SetFocus(a.thread.Messages())
	case pageSearch:
		a.app.SetFocus(a.search.Results())
	case pageHelp:
		a.app.SetFocus(a.help)
	case pageDetails:
		a.app.SetFocus(a.details)
	case pageCompose:
		a.app.SetFocus(a.compose.Recipient())
	}
}

func (a *App) openChat(chatID int64) {
	name := fmt.Sprintf("chat %d", chatID)
	if r, ok := a.chats.Row(chatID); ok {
		name = r.Name
	}
	a.scroll.Reset()
	a.thread.Open(chatID, name)
	a.deps.Engine.OpenChat(chatID)
	a.pages.PopTo(pageChats)
	a.pages.Push(pageThread)
	a.chats.SelectChat(chatID)
	a.app.SetFocus(a.thread.Messages())
}

func (a *App) showSearch() {
	a.pages.Push(pageSearch)
	a.app.SetFocus(a.search.Input())
}

func (a *App) showCompose() {
	if a.pages.Current() != pageCompose {
		a.compose.Reset()
		a.pages.Push(pageCompose)
	}
	a.app.SetFocus(a.compose.Recipient())
}

func (a *App) showHelp() {
	a.pages.Push(pageHelp)
	a.app.SetFocus(a.help)
}

func (a *App) showDetails(chatID int64) {
	if chatID == 0 {
		return
	}
	go func() {
		chat, ok := a.deps.Engine.Chat(chatID)
		if !ok {
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.details.Update(chat)
			a.pages.Push(pageDetails)
			a.app.SetFocus(a.details)
		})
	}()
}

func (a *App) showPrompt(mode ui.PromptMode) {
	if mode == ui.PromptFilter && a.pages.Current() != pageChats {
		return
	}
	a.prompt.Activate(mode)
	if mode == ui.PromptFilter {
		a.prompt.SetText(a.chats.Filter())
	}
	a.root.ResizeItem(a.prompt, 3, 0)
	a.app.SetFocus(a.prompt)
}

func (a *App) hidePrompt() {
	a.root.ResizeItem(a.prompt, 0, 0)
	a.focusPage()
}

func (a *App) runCommand(line string) {
	cmd := ParseCommand(line)
	switch cmd.Name {
	case "":
	case "quit":
		a.app.Stop()
	case "help":
		a.showHelp()
	case "search":
		a.showSearch()
		a.search.Input().SetText(cmd.Args)
	case "filter":
		a.pages.PopTo(pageChats)
		a.chats.SetFilter(cmd.Args)
		a.focusPage()
	case "chat":
		if id, ok := findChat(a.chats.Visible(), cmd.Args); ok {
			a.openChat(id)
		} else {
			a.flash.Warn("no conversation matches " + cmd.Args)
		}
	case "new":
		a.showCompose()
	case "info":
		a.showDetails(a.thread.ChatID())
	case "reload":
		a.deps.Engine.RefreshChats()
		if a.thread.ChatID() != 0 {
			a.deps.Engine.ReloadChat()
		}
		a.flash.Info("reloading")
	case "reconnect":
		a.deps.Router.Reconnect()
		a.flash.Info("reconnecting live feed")
	default:
		a.flash.Warn("unknown command: " + cmd.Name)
	}
	a.flashBar.Update(a.flash.Current())
}

// handle applies a bus event. Runs on the tview goroutine.
func (a *App) handle(evt bus.Event) {
	switch p := evt.Payload.(type) {
	case timeline.View:
		a.thread.Update(p)
		a.scroll.Reset()
	case []chatlist.Row:
		a.chats.Update(p)
		if r, ok := a.chats.Row(a.thread.ChatID()); ok {
			a.thread.SetChatName(r.Name)
		}
		a.updateInfo()
	case intsync.Notification:
		a.flash.Info(fmt.Sprintf("%s: %s", p.Title, p.Body))
	case intsync.SearchView:
		a.search.Update(p)
	case status.StatusChange:
		a.feedState = p.To
		a.statusBar.SetState(p.To)
		switch p.To {
		case status.Open:
			a.flash.Info("live feed connected")
		case status.RetryScheduled:
			a.flash.Warn("live feed lost, reconnecting")
		}
		a.updateInfo()
	case intsync.BatchSummary:
		a.statusBar.CountBatch()
	case intsync.ComposeResult:
		a.compose.Done(p.Err)
		if p.Err == nil {
			a.flash.Info("Message sent to " + p.Recipient)
			if a.pages.Current() == pageCompose {
				a.back()
			}
		}
	case intsync.ErrorEvent:
		a.flash.Err(errors.New(errorText(p)))
	}
	a.flashBar.Update(a.flash.Current())
}

func errorText(e intsync.ErrorEvent) string {
	switch e.Op {
	case "open_chat", "load_older":
		return "Failed to load messages: " + e.Err.Error()
	case "submit", "retry":
		return "Send failed: " + e.Err.Error()
	case "search":
		return "Search failed: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (a *App) updateInfo() {
	a.info.Update(ui.ProfileData{
		Profile: a.deps.Profile,
		Gateway: a.deps.Gateway,
		Feed:    string(a.feedState),
		Online:  a.feedState == status.Open,
		Chats:   a.chats.Len(),
		Unread:  a.chats.Unread(),
		Uptime:  time.Since(a.started),
	})
}

// tick refreshes time-based widgets and tracks whether the user is away.
func (a *App) tick() {
	a.statusBar.Tick()
	a.flashBar.Update(a.flash.Current())
	a.updateInfo()
	if !a.idle && time.Since(a.lastInput) > idleAfter {
		a.idle = true
		a.deps.Engine.SetFocused(false)
	}
}

func (a *App) loop(events <-chan bus.Event) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case evt := <-events:
			a.app.QueueUpdateDraw(func() { a.handle(evt) })
		case <-ticker.C:
			a.app.QueueUpdateDraw(a.tick)
		case <-a.ctx.Done():
			return
		}
	}
}

// Run starts the TUI and blocks until the user quits.
func (a *App) Run() error {
	events, unsub := a.deps.Bus.Subscribe("", 512)
	defer unsub()
	defer a.cancel()

	a.feedState = a.deps.Router.State()
	a.statusBar.SetState(a.feedState)
	a.deps.Engine.SetFocused(true)
	a.seed()
	go a.loop(events)
	return a.app.Run()
}

// seed shows what the engine already holds when the TUI starts: the
// conversation list loaded during startup and the reopened last chat.
// Events published before Run subscribed are not replayed.
func (a *App) seed() {
	a.chats.Update(a.deps.Engine.Rows())
	a.updateInfo()
	if id := a.deps.Engine.ActiveChat(); id != 0 {
		a.openChat(id)
	}
}

// Stop ends Run.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
