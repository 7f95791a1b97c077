package tui

// scrollReporter forwards thread scroll offsets to the engine, skipping
// repeats of the last reported offset. Reset re-arms it so the same offset
// is reported again, which the engine needs after a new page of history
// lands and its pager is re-armed.
type scrollReporter struct {
	last   int
	report func(offset int)
}

func newScrollReporter(report func(offset int)) *scrollReporter {
	return &scrollReporter{last: -1, report: report}
}

// Observe reports offset unless it was the last one reported.
func (s *scrollReporter) Observe(offset int) {
	if offset == s.last {
		return
	}
	s.last = offset
	s.report(offset)
}

// Reset forgets the last reported offset.
func (s *scrollReporter) Reset() { s.last = -1 }
