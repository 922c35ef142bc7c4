package rocrail

import (
	"sync"
	"time"

	"github.com/gorocrail/gorocrail/pkg/log"
)

// ShutdownTimeout is the maximum time Stop waits for a graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of a client.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// lifecycle manages the client state machine.
type lifecycle struct {
	mu      sync.RWMutex
	state   State
	wg      sync.WaitGroup
	logger  log.Logger
	emitter func(previous, current State, reason string)
}

func newLifecycle(logger log.Logger, emitter func(previous, current State, reason string)) *lifecycle {
	return &lifecycle{
		state:   StateStopped,
		logger:  logger,
		emitter: emitter,
	}
}

func (l *lifecycle) current() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// transitionTo moves to a new state if the transition is legal.
func (l *lifecycle) transitionTo(next State, reason string) error {
	l.mu.Lock()
	prev := l.state

	switch prev {
	case StateStopped:
		if next != StateStarting {
			l.mu.Unlock()
			return ErrNotRunning
		}
	case StateStarting:
		if next != StateRunning && next != StateCrashed {
			l.mu.Unlock()
			return ErrAlreadyRunning
		}
	case StateRunning:
		if next != StateStopping && next != StateCrashed {
			l.mu.Unlock()
			return ErrAlreadyRunning
		}
	case StateStopping:
		if next != StateStopped && next != StateCrashed {
			l.mu.Unlock()
			return ErrAlreadyRunning
		}
	case StateCrashed:
		if next != StateStarting {
			l.mu.Unlock()
			return ErrNotRunning
		}
	}

	l.state = next
	l.mu.Unlock()

	if l.emitter != nil {
		l.emitter(prev, next, reason)
	}
	l.logger.Info("state transition",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason))
	return nil
}

func (l *lifecycle) canStart() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateStopped || l.state == StateCrashed
}

func (l *lifecycle) canStop() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateStarting
}

func (l *lifecycle) addWorker() {
	l.wg.Add(1)
}

func (l *lifecycle) workerDone() {
	l.wg.Done()
}

// waitWithTimeout waits for all workers, returning ErrShutdownTimeout
// if the timeout expires first.
func (l *lifecycle) waitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout))
		return ErrShutdownTimeout
	}
}
