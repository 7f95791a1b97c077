// Package keys maps key events to named actions per page.
package keys

import (
	"github.com/elliotchance/orderedmap/v3"
	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/msgview/internal/tui/ui"
)

// Action is a key binding.
type Action struct {
	Key  tcell.Key
	Rune rune
	// Label is the key as shown in the header, e.g. "Enter".
	Label       string
	Description string
	Handler     func()
	Hidden      bool
}

// Matches reports whether ev triggers the action.
func (a *Action) Matches(ev *tcell.EventKey) bool {
	if a.Key != tcell.KeyRune {
		return ev.Key() == a.Key
	}
	return ev.Key() == tcell.KeyRune && ev.Rune() == a.Rune
}

func (a *Action) hint() ui.MenuHint {
	label := a.Label
	if label == "" {
		label = string(a.Rune)
	}
	return ui.MenuHint{Key: label, Description: a.Description}
}

// Registry holds global and per-page bindings in registration order.
type Registry struct {
	global *orderedmap.OrderedMap[string, *Action]
	pages  map[string]*orderedmap.OrderedMap[string, *Action]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		global: orderedmap.NewOrderedMap[string, *Action](),
		pages:  make(map[string]*orderedmap.OrderedMap[string, *Action]),
	}
}

// AddGlobal binds an action on every page. Re-adding a name replaces it.
func (r *Registry) AddGlobal(name string, a *Action) {
	r.global.Set(name, a)
}

// AddPage binds an action on one page. Page bindings win over global ones.
func (r *Registry) AddPage(page, name string, a *Action) {
	m, ok := r.pages[page]
	if !ok {
		m = orderedmap.NewOrderedMap[string, *Action]()
		r.pages[page] = m
	}
	m.Set(name, a)
}

// Hints returns the visible bindings of page, page bindings first.
func (r *Registry) Hints(page string) []ui.MenuHint {
	var hints []ui.MenuHint
	if m, ok := r.pages[page]; ok {
		for el := m.Front(); el != nil; el = el.Next() {
			if !el.Value.Hidden {
				hints = append(hints, el.Value.hint())
			}
		}
	}
	for el := r.global.Front(); el != nil; el = el.Next() {
		if !el.Value.Hidden {
			hints = append(hints, el.Value.hint())
		}
	}
	return hints
}

// HandleEvent runs the first action of page, then of the global set, that
// matches ev. Returns false if nothing matched.
func (r *Registry) HandleEvent(page string, ev *tcell.EventKey) bool {
	if m, ok := r.pages[page]; ok {
		for el := m.Front(); el != nil; el = el.Next() {
			if el.Value.Matches(ev) {
				el.Value.Handler()
				return true
			}
		}
	}
	for el := r.global.Front(); el != nil; el = el.Next() {
		if el.Value.Matches(ev) {
			el.Value.Handler()
			return true
		}
	}
	return false
}
