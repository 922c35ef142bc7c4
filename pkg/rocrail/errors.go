package rocrail

import "errors"

// Errors returned by the public API, checkable with errors.Is.
var (
	// ErrAlreadyRunning is returned when Start() is called on a running client.
	ErrAlreadyRunning = errors.New("rocrail: already running")

	// ErrNotRunning is returned when Stop() is called on a stopped client.
	ErrNotRunning = errors.New("rocrail: not running")

	// ErrShutdownTimeout is returned when graceful shutdown times out.
	ErrShutdownTimeout = errors.New("rocrail: shutdown timeout")

	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("rocrail: invalid configuration")
)
