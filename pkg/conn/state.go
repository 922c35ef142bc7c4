package conn

import (
	"fmt"
	"sync"
)

// State represents the lifecycle state of a connection.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateStopping
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// stateMachine guards connection state transitions. A connection instance
// is single-use: once stopped or disconnected it is not restarted.
type stateMachine struct {
	mu    sync.RWMutex
	state State
}

func (m *stateMachine) current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// transitionTo attempts a state transition, rejecting moves the
// connection lifecycle does not allow.
func (m *stateMachine) transitionTo(next State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	valid := false
	switch m.state {
	case StateDisconnected:
		valid = next == StateConnecting
	case StateConnecting:
		valid = next == StateConnected || next == StateDisconnected || next == StateStopping
	case StateConnected:
		valid = next == StateStopping || next == StateDisconnected
	case StateStopping:
		valid = next == StateStopped
	case StateStopped:
		valid = false
	}
	if !valid {
		return fmt.Errorf("conn: invalid state transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}

// force sets the state unconditionally; used by teardown paths that can
// race with each other and must converge on a terminal state.
func (m *stateMachine) force(next State) {
	m.mu.Lock()
	m.state = next
	m.mu.Unlock()
}
