package tui

import (
	"slices"
	"testing"
)

func TestScrollReporter(t *testing.T) {
	var got []int
	s := newScrollReporter(func(off int) { got = append(got, off) })

	s.Observe(10)
	s.Observe(10)
	s.Observe(0)
	s.Observe(0)
	// A new page of history arrives while the view still sits at the top.
	s.Reset()
	s.Observe(0)

	if want := []int{10, 0, 0}; !slices.Equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
