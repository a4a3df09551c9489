package client

import "errors"

var (
	// ErrDaemonNotRunning is returned when nothing listens on the daemon's
	// status address.
	ErrDaemonNotRunning = errors.New("daemon not running")

	// ErrNotFound is returned when the daemon answers 404, e.g. before its
	// first cycle.
	ErrNotFound = errors.New("404 not found")
)
