// Package fsm provides a small table-driven finite state machine with
// closed, integer-valued state and event sets.
package fsm

import (
	"fmt"
)

// State is a machine state.  Packages using fsm declare their own
// constants of this type.
type State int

// Event drives a transition between states.
type Event int

// Callback is run after a transition has been made.
type Callback func(args []interface{})

// Transition describes the move from one state to another on receipt of
// any of a set of events.
type Transition struct {
	From, To State
	Events   []Event
	Cb       Callback
}

// Machine holds the current state and its transition table.
type Machine struct {
	current State
	table   []Transition
}

// New returns a machine in the initial state using the given table.
func New(initial State, table []Transition) *Machine {
	return &Machine{
		current: initial,
		table:   table,
	}
}

// Current returns the state the machine is in.
func (m *Machine) Current() State {
	return m.current
}

// Force moves the machine to s without running any callback.
func (m *Machine) Force(s State) {
	m.current = s
}

// HandleEvent looks up a transition for e in the current state, moves to
// the destination state and runs the transition's callback.
func (m *Machine) HandleEvent(e Event, args ...interface{}) error {
	for _, t := range m.table {
		if m.current == t.From {
			for _, event := range t.Events {
				if e == event {
					m.current = t.To
					if t.Cb != nil {
						t.Cb(args)
					}
					return nil
				}
			}
		}
	}
	return fmt.Errorf("no transition defined for event %v in state %v", e, m.current)
}
