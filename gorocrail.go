// Package gorocrail provides a client for the Rocrail model railway
// server: it mirrors the layout state in memory and runs scheduled
// automation against it.
//
// Example usage:
//
//	cfg := gorocrail.DefaultConfig()
//	cfg.Host = "rocrail.local"
//	c, err := gorocrail.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := c.Start(context.Background()); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// The full API lives in pkg/rocrail; this package re-exports the
// entry points most applications need.
package gorocrail

import (
	"github.com/gorocrail/gorocrail/pkg/rocrail"
)

// Config holds the configuration for the Rocrail client.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = rocrail.Config

// Client is a connected Rocrail client. Use New() to create one.
type Client = rocrail.Client

// Option configures optional client behavior, e.g. WithLogger or
// WithEventHandler.
type Option = rocrail.Option

// EventHandler receives notifications about client operations.
type EventHandler = rocrail.EventHandler

// BaseEventHandler provides no-op defaults for EventHandler; embed it
// to implement only the events you care about.
type BaseEventHandler = rocrail.BaseEventHandler

// State is a client lifecycle state.
type State = rocrail.State

// Lifecycle states. A client starts in StateStopped; StateCrashed
// clients may be started again.
const (
	StateStopped  = rocrail.StateStopped
	StateStarting = rocrail.StateStarting
	StateRunning  = rocrail.StateRunning
	StateStopping = rocrail.StateStopping
	StateCrashed  = rocrail.StateCrashed
)

// New creates a new client with the given configuration.
// The instance is created stopped; call Start() to connect.
func New(cfg Config, opts ...Option) (*Client, error) {
	return rocrail.New(cfg, opts...)
}

// DefaultConfig returns a Config with sensible default values
// (localhost, the standard client service port, plan requested on
// connect).
func DefaultConfig() Config {
	return rocrail.DefaultConfig()
}

// WithLogger sets the logger used by the client and its subsystems.
var WithLogger = rocrail.WithLogger

// WithEventHandler sets the handler receiving client events.
var WithEventHandler = rocrail.WithEventHandler

// WithPlugin registers a plugin initialized on Start and shut down on
// Stop.
var WithPlugin = rocrail.WithPlugin

// DefaultPort is the Rocrail client service port.
const DefaultPort = rocrail.DefaultPort
