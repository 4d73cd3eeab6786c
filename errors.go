package rcon

import "errors"

// Errors returned by client operations. They are usually wrapped with
// additional context; match with errors.Is.
var (
	// ErrConnectionClosed is returned when operating on a closed
	// connection, and is the failure every pending request observes when
	// the connection terminates underneath it.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrAuthFailure is returned when the server rejects the password
	// during the handshake.
	ErrAuthFailure = errors.New("authentication failed")

	// ErrMalformedFrame is returned when an inbound frame is truncated or
	// carries an inconsistent size field.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrFrameTooLarge is returned when a frame exceeds the maximum
	// allowed size.
	ErrFrameTooLarge = errors.New("frame too large")

	// ErrAlreadyAuthenticated is returned by a second login attempt on an
	// instance that already completed the handshake.
	ErrAlreadyAuthenticated = errors.New("already authenticated")

	// ErrNotAuthenticated is returned when a command is issued before a
	// successful login.
	ErrNotAuthenticated = errors.New("not authenticated")
)
