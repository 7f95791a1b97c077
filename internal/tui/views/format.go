package views

import (
	"strings"

	"github.com/rivo/tview"
	"github.com/rivo/uniseg"
)

func tviewEscape(s string) string { return tview.Escape(s) }

// wrap breaks text into lines of at most width terminal cells, preferring
// to break at spaces. Existing newlines are kept.
func wrap(text string, width int) []string {
	if width <= 0 {
		width = 1
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = append(out, wrapLine(para, width)...)
	}
	return out
}

func wrapLine(line string, width int) []string {
	if uniseg.StringWidth(line) <= width {
		return []string{line}
	}
	var (
		out  []string
		cur  strings.Builder
		curW int
	)
	flush := func() {
		out = append(out, strings.TrimRight(cur.String(), " "))
		cur.Reset()
		curW = 0
	}
	for _, word := range strings.SplitAfter(line, " ") {
		w := uniseg.StringWidth(word)
		if curW > 0 && curW+w-trailingSpaces(word) > width {
			flush()
		}
		if w <= width {
			cur.WriteString(word)
			curW += w
			continue
		}
		// Hard-break a word wider than the line.
		rest, state := word, -1
		for rest != "" {
			var cluster string
			var cw int
			cluster, rest, cw, state = uniseg.FirstGraphemeClusterInString(rest, state)
			if curW+cw > width {
				flush()
			}
			cur.WriteString(cluster)
			curW += cw
		}
	}
	if cur.Len() > 0 || len(out) == 0 {
		flush()
	}
	return out
}

func trailingSpaces(s string) int {
	return len(s) - len(strings.TrimRight(s, " "))
}

func trimmed(s string) string { return strings.TrimSpace(s) }
