package sched

import (
	"context"
	"regexp"
	"time"

	"github.com/gorocrail/gorocrail/pkg/model"
)

// TriggerKind selects what fires an action.
type TriggerKind int

const (
	// TriggerTime fires on fast-clock advances matching a time pattern.
	TriggerTime TriggerKind = iota
	// TriggerEvent fires on object updates matching an ID pattern.
	TriggerEvent
)

func (k TriggerKind) String() string {
	switch k {
	case TriggerTime:
		return "time"
	case TriggerEvent:
		return "event"
	default:
		return "unknown"
	}
}

// Script is the user code an action runs. It executes on a pool worker
// concurrently with the reader goroutine; the context is cancelled when
// the action's timeout elapses, and cancellation is cooperative.
type Script func(ctx context.Context, m *model.Model) (interface{}, error)

// fireKey is the clock tick an action last fired on.
type fireKey struct {
	hour, minute int
}

// Action is a registered automation rule. Fields are set by the caller
// before Register and not mutated afterwards; the scheduler owns the
// run state.
type Action struct {
	// Name appears in log output. Optional.
	Name string

	Script  Script
	Kind    TriggerKind
	Pattern string

	// Condition gates firing. Empty means always; evaluation errors
	// count as false.
	Condition string

	// Timeout bounds a single run. Zero means the default.
	Timeout time.Duration

	// OnSuccess and OnError are both optional. Exactly one of them is
	// invoked per run, from the monitor goroutine.
	OnSuccess func(result interface{}, elapsed time.Duration)
	OnError   func(err error, elapsed time.Duration)

	lastFired fireKey
	hasFired  bool
	idPattern *regexp.Regexp
}
