package views

import (
	"strings"
	"unicode"
)

// sanitizeForTerminal removes codepoints tcell cannot lay out in a fixed
// cell grid: skin tone modifiers, zero width joiners, variation selectors
// and control characters other than newline. "👍🏻" becomes "👍".
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if isProblematicRune(r) {
			return -1
		}
		return r
	}, s)
}

func isProblematicRune(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF:
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F:
		return true
	case r >= 0xE0100 && r <= 0xE01EF:
		return true
	case r != '\n' && unicode.IsControl(r):
		return true
	default:
		return false
	}
}

// clean prepares gateway text for a tview cell or text view.
func clean(s string) string {
	return tviewEscape(sanitizeForTerminal(s))
}
