package collaboration

import "errors"

// Connection-related errors
var (
	ErrNotConnected = errors.New("connection is not open")
	ErrDisabled     = errors.New("collaboration is disabled")
	ErrNilDialer    = errors.New("dialer cannot be nil")
)

// Router-related errors
var (
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrGameMismatch       = errors.New("message belongs to another game")
	ErrMissingUserID      = errors.New("presence message carries no user id")
)

// Invite-related errors
var (
	ErrInvalidEmail = errors.New("editor must be a valid email address")
)

// Conflict-related errors
var (
	ErrNoPendingConflict = errors.New("no conflict is pending")
)

// Session-related errors
var (
	ErrInvalidConflictMode = errors.New("conflict mode must be auto or manual")
	ErrNoJournal           = errors.New("no snapshot journal attached")
)
