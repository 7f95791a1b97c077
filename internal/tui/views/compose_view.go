package views

import (
	"errors"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/msgview/internal/model"
	"github.com/matheus3301/msgview/internal/tui/ui"
)

// ComposeView is the "New Message" page for writing to a recipient that
// may not have a conversation yet.
type ComposeView struct {
	*tview.Flex
	theme     *ui.Theme
	recipient *tview.InputField
	message   *tview.InputField
	status    *tview.TextView
	sending   bool

	focus    func(p tview.Primitive)
	onSend   func(recipient, text string)
	onCancel func()
}

func composeInput(theme *ui.Theme, label, placeholder string) *tview.InputField {
	input := tview.NewInputField().
		SetLabel(label).
		SetPlaceholder(placeholder).
		SetFieldWidth(0)
	input.SetBackgroundColor(theme.BgColor)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.MenuKeyColor)
	input.SetPlaceholderTextColor(theme.BorderColor)
	return input
}

// NewComposeView creates the compose page.
func NewComposeView(theme *ui.Theme) *ComposeView {
	recipient := composeInput(theme, " To:      ", "Phone number or email")
	message := composeInput(theme, " Message: ", "Type your message...")
	status := tview.NewTextView().SetDynamicColors(true)
	status.SetBackgroundColor(theme.BgColor)

	form := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(recipient, 1, 0, true).
		AddItem(nil, 1, 0, false).
		AddItem(message, 1, 0, false).
		AddItem(nil, 1, 0, false).
		AddItem(status, 1, 0, false).
		AddItem(nil, 0, 1, false)
	form.SetBorder(true)
	form.SetBorderColor(theme.BorderColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetTitle(" New Message ")
	form.SetTitleColor(theme.TitleColor)
	form.SetBorderPadding(1, 0, 1, 1)

	cv := &ComposeView{
		Flex:      form,
		theme:     theme,
		recipient: recipient,
		message:   message,
		status:    status,
		focus:     func(tview.Primitive) {},
	}
	recipient.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter, tcell.KeyTab, tcell.KeyDown:
			cv.focus(cv.message)
		case tcell.KeyEscape:
			cv.cancel()
		}
	})
	message.SetDoneFunc(func(key tcell.Key) {
		switch key {
		case tcell.KeyEnter:
			cv.Submit()
		case tcell.KeyBacktab, tcell.KeyUp:
			cv.focus(cv.recipient)
		case tcell.KeyEscape:
			cv.cancel()
		}
	})
	return cv
}

// SetFocusFunc registers how the view moves focus between its inputs.
func (cv *ComposeView) SetFocusFunc(fn func(p tview.Primitive)) { cv.focus = fn }

// SetOnSend registers the callback run with a validated, normalized
// recipient and the trimmed text.
func (cv *ComposeView) SetOnSend(fn func(recipient, text string)) { cv.onSend = fn }

// SetOnCancel registers the Esc callback. Esc is ignored while sending.
func (cv *ComposeView) SetOnCancel(fn func()) { cv.onCancel = fn }

func (cv *ComposeView) cancel() {
	if !cv.sending && cv.onCancel != nil {
		cv.onCancel()
	}
}

// Submit validates the form and hands it to the send callback.
func (cv *ComposeView) Submit() {
	if cv.sending {
		return
	}
	to, err := model.NormalizeRecipient(cv.recipient.GetText())
	if err != nil {
		cv.showError(capitalize(err.Error()))
		cv.focus(cv.recipient)
		return
	}
	text := strings.TrimSpace(cv.message.GetText())
	if text == "" {
		cv.showError("Message cannot be empty")
		cv.focus(cv.message)
		return
	}
	cv.sending = true
	cv.status.SetText("[::i]Sending...[-:-:-]")
	if cv.onSend != nil {
		cv.onSend(to, text)
	}
}

// Done reports the outcome of the send started by Submit. The form is
// cleared on success and kept for editing on failure.
func (cv *ComposeView) Done(err error) {
	cv.sending = false
	if err != nil {
		var msg string
		if errors.Is(err, model.ErrInvalidRecipient) || errors.Is(err, model.ErrRecipientRequired) {
			msg = capitalize(err.Error())
		} else {
			msg = "Error: " + err.Error()
		}
		cv.showError(msg)
		return
	}
	cv.Reset()
}

// Reset clears the form.
func (cv *ComposeView) Reset() {
	cv.sending = false
	cv.recipient.SetText("")
	cv.message.SetText("")
	cv.status.Clear()
}

// Sending reports whether a send is outstanding.
func (cv *ComposeView) Sending() bool { return cv.sending }

// Status returns the error or progress line without color tags.
func (cv *ComposeView) Status() string { return cv.status.GetText(true) }

// Recipient returns the recipient input.
func (cv *ComposeView) Recipient() *tview.InputField { return cv.recipient }

// Message returns the message input.
func (cv *ComposeView) Message() *tview.InputField { return cv.message }

func (cv *ComposeView) showError(msg string) {
	cv.status.SetText("[" + ui.Tag(cv.theme.FailedColor) + "]" + tview.Escape(msg) + "[-]")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
