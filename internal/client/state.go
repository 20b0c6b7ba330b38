package client

import (
	"errors"
	"fmt"
	"sync"
)

// ConnState is the connection state of an agent.
type ConnState string

const (
	StateIdle           ConnState = "idle"
	StateAcquiringMedia ConnState = "acquiring-media"
	StateConnecting     ConnState = "connecting"
	StateConnected      ConnState = "connected"
	StateFailed         ConnState = "failed"
	StateClosed         ConnState = "closed"
)

var ErrIllegalTransition = errors.New("illegal state transition")

var transitions = map[ConnState][]ConnState{
	StateIdle:           {StateAcquiringMedia, StateClosed},
	StateAcquiringMedia: {StateConnecting, StateFailed, StateClosed},
	StateConnecting:     {StateConnected, StateFailed, StateClosed},
	StateConnected:      {StateFailed, StateClosed},
	StateFailed:         {StateAcquiringMedia, StateConnecting, StateClosed},
	StateClosed:         nil,
}

// StateChangeFunc observes transitions. cause is set when entering failed.
type StateChangeFunc func(from, to ConnState, cause error)

type StateMachine struct {
	mu       sync.Mutex
	state    ConnState
	onChange StateChangeFunc
}

func NewStateMachine(onChange StateChangeFunc) *StateMachine {
	return &StateMachine{state: StateIdle, onChange: onChange}
}

func (m *StateMachine) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Transition moves to state to. Moving to the current state is a no-op.
func (m *StateMachine) Transition(to ConnState, cause error) error {
	m.mu.Lock()
	from := m.state
	if from == to {
		m.mu.Unlock()
		return nil
	}
	if !allowed(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	m.state = to
	onChange := m.onChange
	m.mu.Unlock()

	if onChange != nil {
		onChange(from, to, cause)
	}
	return nil
}

func allowed(from, to ConnState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
