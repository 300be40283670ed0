package server

import "errors"

// Sentinel errors for common session and server error conditions.
var (
	// ErrSessionClosed is returned when an operation is attempted on a closed session.
	ErrSessionClosed = errors.New("server: session closed")

	// ErrMaxSessionsReached is returned when the maximum number of sessions is reached.
	ErrMaxSessionsReached = errors.New("server: max sessions reached")

	// ErrNoConnection is returned when attempting to send on a nil connection.
	ErrNoConnection = errors.New("server: no connection")

	// ErrAlreadyRegistered is returned when a session sends a second connect request.
	ErrAlreadyRegistered = errors.New("server: session already registered")

	// ErrNotRegistered is returned when a request requires an active session.
	ErrNotRegistered = errors.New("server: session not registered")
)
