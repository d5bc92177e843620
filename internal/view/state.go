package view

import (
	"fmt"
	"sync"
)

// Phase is the client-side lifecycle of one jam view.
type Phase string

const (
	PhaseUnjoined Phase = "unjoined"
	PhaseJoining  Phase = "joining"
	PhaseJoined   Phase = "joined"
	PhaseError    Phase = "error"
)

// SessionView tracks the join lifecycle for a jam on the client. The only
// way out of PhaseError is a user-triggered retry back into PhaseJoining.
type SessionView struct {
	mu    sync.Mutex
	phase Phase
}

func NewSessionView() *SessionView {
	return &SessionView{phase: PhaseUnjoined}
}

func (v *SessionView) Phase() Phase {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.phase
}

// BeginJoin starts (or retries) a join attempt.
func (v *SessionView) BeginJoin() error {
	return v.transition(PhaseJoining, PhaseUnjoined, PhaseError)
}

// JoinSucceeded marks the view joined.
func (v *SessionView) JoinSucceeded() error {
	return v.transition(PhaseJoined, PhaseJoining)
}

// JoinFailed moves a pending join into the error state.
func (v *SessionView) JoinFailed() error {
	return v.transition(PhaseError, PhaseJoining)
}

// Leave returns an explicitly left view to unjoined.
func (v *SessionView) Leave() error {
	return v.transition(PhaseUnjoined, PhaseJoined)
}

func (v *SessionView) transition(to Phase, from ...Phase) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, f := range from {
		if v.phase == f {
			v.phase = to
			return nil
		}
	}
	return fmt.Errorf("invalid view transition %s -> %s", v.phase, to)
}
