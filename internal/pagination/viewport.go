package pagination

// Viewport is a scrollable view whose content grows at the top when older
// history is prepended.
type Viewport interface {
	// ScrollOffset returns the first visible row.
	ScrollOffset() int
	// ContentHeight returns the total number of rows.
	ContentHeight() int
	SetScrollOffset(row int)
}

// Anchor is the scroll position measured from the bottom of the content.
type Anchor struct {
	fromBottom int
}

// Capture records v's distance from the bottom before content is prepended.
func Capture(v Viewport) Anchor {
	return Anchor{fromBottom: v.ContentHeight() - v.ScrollOffset()}
}

// Restore scrolls v so the rows that were visible at Capture stay in place.
func (a Anchor) Restore(v Viewport) {
	v.SetScrollOffset(max(v.ContentHeight()-a.fromBottom, 0))
}
