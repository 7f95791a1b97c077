package timeline

import (
	"fmt"
	"slices"
	"time"

	"github.com/matheus3301/msgview/internal/model"
)

// DefaultSeparatorGap is the silence after which a time separator is shown.
const DefaultSeparatorGap = 60 * time.Minute

// ItemKind distinguishes rows of a rendered timeline.
type ItemKind int

const (
	ItemMessage ItemKind = iota
	ItemSeparator
)

// Reaction is an aggregated tapback annotation on a message.
type Reaction struct {
	Kind  model.TapbackKind
	Emoji string
	Count int
	// Mine is set when at least one of the reactions is self-authored.
	Mine bool
}

// Label returns the annotation text, e.g. "👍 3". The count is omitted for a
// single reaction.
func (r Reaction) Label() string {
	if r.Count <= 1 {
		return r.Emoji
	}
	return fmt.Sprintf("%s %d", r.Emoji, r.Count)
}

// Item is one row of a rendered timeline.
type Item struct {
	Kind ItemKind

	Message model.Message
	// Sender is set when the row should be decorated with its author.
	Sender    string
	Reactions []Reaction

	// Time is the timestamp a separator announces.
	Time time.Time
}

// View is the render model of the open conversation.
type View struct {
	ChatID         int64
	Items          []Item
	ScrollToBottom bool
	// Prepended is set when older history was added above the previous
	// content; the viewer keeps its position anchored to the bottom.
	Prepended bool
	Loading   bool
	HasMore   bool
	// Error is an inline placeholder shown when a fetch failed.
	Error string
}

// Options controls rendering.
type Options struct {
	SeparatorGap   time.Duration
	Group          bool
	ScrollToBottom bool
}

// Render builds the visible timeline from the confirmed store contents and
// the pending placeholders. It does not modify its inputs and returns the
// same View for the same state.
func Render(s *Store, pending []model.Message, opts Options) View {
	gap := opts.SeparatorGap
	if gap <= 0 {
		gap = DefaultSeparatorGap
	}

	all := s.Messages()
	reactions := aggregate(all)

	visible := make([]model.Message, 0, len(all)+len(pending))
	for _, m := range all {
		if !m.IsTapback() {
			visible = append(visible, m)
		}
	}
	for _, p := range pending {
		if p.ChatID == s.ChatID() {
			visible = append(visible, p)
		}
	}
	slices.SortStableFunc(visible, compareEffective)

	view := View{ChatID: s.ChatID(), ScrollToBottom: opts.ScrollToBottom}
	var (
		prev       *model.Message
		lastSender string
	)
	for i := range visible {
		m := visible[i]
		if prev != nil && m.Timestamp.Sub(prev.Timestamp) > gap {
			view.Items = append(view.Items, Item{Kind: ItemSeparator, Time: m.Timestamp})
			lastSender = ""
		}
		item := Item{Kind: ItemMessage, Message: m}
		if m.GUID != "" {
			item.Reactions = reactions[m.GUID]
		}
		if opts.Group {
			key := senderKey(m)
			if !m.IsFromMe && key != lastSender {
				item.Sender = m.SenderName()
			}
			lastSender = key
		}
		view.Items = append(view.Items, item)
		prev = &visible[i]
	}
	return view
}

// compareEffective orders confirmed messages by RowID ahead of every pending
// or failed placeholder, which are ordered by creation time.
func compareEffective(a, b model.Message) int {
	ta, tb := tier(a), tier(b)
	if ta != tb {
		return ta - tb
	}
	if ta == 0 {
		return cmpInt64(a.RowID, b.RowID)
	}
	if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
		return c
	}
	// Synthetic ids decrease with each submit.
	return cmpInt64(b.RowID, a.RowID)
}

func tier(m model.Message) int {
	if m.RowID > 0 && m.Status != model.Pending && m.Status != model.Failed {
		return 0
	}
	return 1
}

func senderKey(m model.Message) string {
	if m.IsFromMe {
		return "\x00me"
	}
	return m.HandleID
}

// aggregate groups tapbacks by target GUID. Classic kinds come first in
// display order, custom emoji after them in order of first appearance.
func aggregate(msgs []model.Message) map[string][]Reaction {
	type bucket struct {
		order []string
		byKey map[string]*Reaction
	}
	buckets := make(map[string]*bucket)
	for _, m := range msgs {
		if !m.IsTapback() {
			continue
		}
		target := m.TargetGUID()
		if target == "" {
			continue
		}
		r := model.ParseTapback(m.TapbackType)
		if r.Kind == model.Unknown {
			continue
		}
		b, ok := buckets[target]
		if !ok {
			b = &bucket{byKey: make(map[string]*Reaction)}
			buckets[target] = b
		}
		key := r.Key()
		agg, ok := b.byKey[key]
		if !ok {
			agg = &Reaction{Kind: r.Kind, Emoji: r.Emoji}
			b.byKey[key] = agg
			b.order = append(b.order, key)
		}
		agg.Count++
		if m.IsFromMe {
			agg.Mine = true
		}
	}

	out := make(map[string][]Reaction, len(buckets))
	for target, b := range buckets {
		list := make([]Reaction, 0, len(b.order))
		for _, k := range b.order {
			list = append(list, *b.byKey[k])
		}
		slices.SortStableFunc(list, func(x, y Reaction) int { return kindRank(x.Kind) - kindRank(y.Kind) })
		out[target] = list
	}
	return out
}

func kindRank(k model.TapbackKind) int {
	if i := slices.Index(model.TapbackKinds, k); i >= 0 {
		return i
	}
	return len(model.TapbackKinds)
}
