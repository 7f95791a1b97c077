package chatlist

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/matheus3301/msgview/internal/model"
)

const (
	previewLimit   = 50
	selfPrefix     = "You: "
	unknownName    = "Unknown"
	participantSep = ", "
)

var syntheticGroupID = regexp.MustCompile(`^chat\d+$`)

// DisplayName resolves the title of a conversation. The first rule that
// yields a value wins:
//  1. the contact name of the primary participant
//  2. the identifier, unless it is a synthetic group id (chat123…)
//  3. the assigned display name, unless it is a synthetic group id
//  4. the participants, by contact name or masked phone number
//  5. "Unknown"
func DisplayName(c model.Chat) string {
	if c.Contact != nil && c.Contact.Name != "" {
		return c.Contact.Name
	}
	if c.Identifier != "" && !syntheticGroupID.MatchString(c.Identifier) {
		return c.Identifier
	}
	if c.DisplayName != "" && !syntheticGroupID.MatchString(c.DisplayName) {
		return c.DisplayName
	}
	if names := participantNames(c); len(names) > 0 {
		return strings.Join(names, participantSep)
	}
	return unknownName
}

func participantNames(c model.Chat) []string {
	var names []string
	if len(c.ParticipantContacts) > 0 {
		for _, p := range c.ParticipantContacts {
			if p.Contact != nil && p.Contact.Name != "" {
				names = append(names, p.Contact.Name)
			} else if p.Handle != "" {
				names = append(names, MaskHandle(p.Handle))
			}
		}
		return names
	}
	for _, h := range c.Participants {
		if h != "" {
			names = append(names, MaskHandle(h))
		}
	}
	return names
}

// MaskHandle hides all but the last four digits of a phone-like handle.
// Other handles are returned unchanged.
func MaskHandle(h string) string {
	digits := make([]rune, 0, len(h))
	for _, r := range h {
		switch {
		case unicode.IsDigit(r):
			digits = append(digits, r)
		case r == '+' || r == '-' || r == ' ' || r == '(' || r == ')' || r == '.':
		default:
			return h
		}
	}
	if len(digits) < 7 {
		return h
	}
	return "…" + string(digits[len(digits)-4:])
}

// Preview formats the last-message line of a conversation.
func Preview(text string, fromMe bool) string {
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) > previewLimit {
		text = string([]rune(text)[:previewLimit]) + "..."
	}
	if fromMe {
		return selfPrefix + text
	}
	return text
}

// RelativeLabel formats ts relative to now: time of day for today,
// "Yesterday", the weekday within the last week, otherwise a short date.
// Days are calendar days in now's location.
func RelativeLabel(ts, now time.Time) string {
	if ts.IsZero() {
		return ""
	}
	ts = ts.In(now.Location())
	days := dayNumber(now) - dayNumber(ts)
	switch {
	case days <= 0:
		return ts.Format("15:04")
	case days == 1:
		return "Yesterday"
	case days < 7:
		return ts.Format("Mon")
	default:
		return ts.Format("Jan 2")
	}
}

func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
