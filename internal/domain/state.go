package domain

import (
	"fmt"
	"time"
)

// State tags where a story sits in the pipeline. Failures do not get their
// own states: a failed stage leaves the story where it was, with the failed
// step run carrying the error detail.
type State string

const (
	StateCreated    State = "created"
	StateDiscovered State = "discovered"
	StateRefining   State = "refining"
	StateRefined    State = "refined"
	StateValidating State = "validating"
	StateApproved   State = "approved"
	StateRejected   State = "rejected"
	StatePublishing State = "publishing"
	StatePublished  State = "published"
)

// transitions is the allowed forward-edge set. StateRefining is re-enterable
// from every mid-pipeline state so an operator can re-trigger the
// refine-and-validate stage after a failed attempt; approved, rejected, and
// published admit no re-entry.
var transitions = map[State][]State{
	StateCreated:    {StateDiscovered},
	StateDiscovered: {StateRefining},
	StateRefining:   {StateRefined, StateRefining},
	StateRefined:    {StateValidating, StateRefining},
	StateValidating: {StateApproved, StateRejected, StateRefining},
	StateApproved:   {StatePublishing},
	StatePublishing: {StatePublished},
}

// CanTransition reports whether next is a legal successor of s.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no forward transition exists from s.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// Advance moves the story to next, failing on any edge outside the
// transition table.
func (s *Story) Advance(next State) error {
	if !s.State.CanTransition(next) {
		return fmt.Errorf("illegal story transition %s -> %s", s.State, next)
	}
	s.State = next
	s.UpdatedAt = time.Now().UTC()
	return nil
}
