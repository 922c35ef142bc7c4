package rocrail

import (
	"context"

	"github.com/gorocrail/gorocrail/pkg/log"
)

// Plugin extends a client with optional functionality. Plugins are
// initialized during Start, in registration order, and shut down during
// Stop in reverse order. An initialization error aborts the start.
type Plugin interface {
	// Name identifies the plugin in log output.
	Name() string

	// Initialize is called during Start with the client's runtime
	// context. The context is cancelled when the client stops.
	Initialize(ctx context.Context, cfg PluginConfig) error

	// Shutdown is called during Stop.
	Shutdown(ctx context.Context) error
}

// PluginConfig is passed to plugins at initialization.
type PluginConfig struct {
	// Host and Port identify the connected server.
	Host string
	Port int

	// Client is the owning client. Plugins may register actions and
	// send commands through it.
	Client *Client

	// Logger is the client's logger.
	Logger log.Logger
}
