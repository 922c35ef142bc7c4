package rocrail

import (
	"fmt"
	"time"

	"github.com/gorocrail/gorocrail/pkg/sched"
)

// DefaultPort is the Rocrail server's default client port.
const DefaultPort = 8051

// Config holds the configuration for a Rocrail client.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// Host is the Rocrail server address.
	Host string

	// Port is the Rocrail server client port.
	Port int

	// DialTimeout bounds the initial TCP connect.
	DialTimeout time.Duration

	// ReadTimeout is the per-iteration socket read deadline. Expiry is
	// a retry, not an error.
	ReadTimeout time.Duration

	// StopTimeout bounds how long Stop waits for the reader goroutine.
	StopTimeout time.Duration

	// RequestPlan controls whether Start asks the server for the
	// layout plan after connecting.
	RequestPlan bool

	// Scheduler tunes the action worker pool and timeout monitor.
	Scheduler sched.Config
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Host:        "localhost",
		Port:        DefaultPort,
		DialTimeout: 10 * time.Second,
		ReadTimeout: 2 * time.Second,
		StopTimeout: 5 * time.Second,
		RequestPlan: true,
	}
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 2 * time.Second
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = 5 * time.Second
	}
	c.Scheduler.SetDefaults()
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	return nil
}

// Addr returns the host:port dial target.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
