package rocrail

import (
	"github.com/gorocrail/gorocrail/pkg/conn"
	"github.com/gorocrail/gorocrail/pkg/log"
)

// Option configures optional behavior of a Client.
type Option func(*options)

// options holds the optional configuration for a Client instance.
type options struct {
	logger       log.Logger
	eventHandler EventHandler
	plugins      []Plugin
	dialer       conn.Dialer
}

func defaultOptions() options {
	return options{
		logger: log.NewNoopLogger(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithEventHandler sets a handler for client events.
// If not provided, no events are emitted.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		o.eventHandler = handler
	}
}

// WithPlugin registers a plugin to be initialized when the client
// starts. Plugins are initialized in registration order and shut down
// in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		o.plugins = append(o.plugins, plugin)
	}
}

// WithDialer replaces the TCP dialer. Intended for tests that connect
// the client to an in-memory pipe.
func WithDialer(d conn.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}
