package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/msgview/internal/bus"
)

// State is a live feed connection state.
type State string

const (
	Disconnected   State = "DISCONNECTED"
	Connecting     State = "CONNECTING"
	Open           State = "OPEN"
	RetryScheduled State = "RETRY_SCHEDULED"
	Stopped        State = "STOPPED"
)

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Disconnected:   {Connecting, Stopped},
	Connecting:     {Open, RetryScheduled, Disconnected, Stopped},
	Open:           {RetryScheduled, Disconnected, Stopped},
	RetryScheduled: {Connecting, Disconnected, Stopped},
	Stopped:        {},
}

// Machine tracks and enforces feed connection state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Disconnected state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns error if transition is invalid.
// Transitioning to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Publish(bus.NewEvent(bus.FeedStateChanged, StatusChange{From: from, To: to}))
	return nil
}

// StatusChange is the payload for feed state change events.
type StatusChange struct {
	From State
	To   State
}
