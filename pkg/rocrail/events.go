package rocrail

import (
	"time"

	"github.com/gorocrail/gorocrail/pkg/frame"
	"github.com/gorocrail/gorocrail/pkg/model"
)

// EventHandler receives notifications about client operations. Events
// are called synchronously from client goroutines; implementations
// should return quickly.
type EventHandler interface {
	// OnStateChange is called on every lifecycle transition.
	OnStateChange(event StateChangeEvent)

	// OnDocument is called for every document decoded from the server,
	// after the model has applied it.
	OnDocument(event DocumentEvent)

	// OnActionDone is called when a registered action run completes,
	// whether it succeeded, failed or timed out.
	OnActionDone(event ActionDoneEvent)

	// OnUnexpectedDisconnect is called once when the server connection
	// drops without a stop request or a shutdown announcement.
	OnUnexpectedDisconnect(event DisconnectEvent)
}

// BaseEventHandler provides no-op implementations of every EventHandler
// method. Embed it to implement only the events you care about.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent)         {}
func (BaseEventHandler) OnDocument(DocumentEvent)               {}
func (BaseEventHandler) OnActionDone(ActionDoneEvent)           {}
func (BaseEventHandler) OnUnexpectedDisconnect(DisconnectEvent) {}

// StateChangeEvent describes a lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// DocumentEvent carries a decoded server document.
type DocumentEvent struct {
	Document *frame.Document
}

// ActionDoneEvent describes a completed action run.
type ActionDoneEvent struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// DisconnectEvent carries the last known layout state at the moment an
// unexpected disconnect was detected.
type DisconnectEvent struct {
	Snapshot model.Snapshot
}
