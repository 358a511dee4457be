package generic

import "fmt"

// Transitions is a static transition table for a small workflow.
// A state absent from the table is terminal.
type Transitions[S comparable] map[S][]S

// Permits reports whether from -> to is allowed.
func (t Transitions[S]) Permits(from, to S) bool {
	for _, s := range t[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (t Transitions[S]) IsTerminal(s S) bool {
	return len(t[s]) == 0
}

// Check returns ErrInvalidTransition wrapped with the attempted move.
func (t Transitions[S]) Check(from, to S) error {
	if t.Permits(from, to) {
		return nil
	}
	return fmt.Errorf("%w: %v -> %v", ErrInvalidTransition, from, to)
}
