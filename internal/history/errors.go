package history

import "errors"

var (
	// ErrNotFound is returned when an event does not exist.
	ErrNotFound = errors.New("history: event not found")

	// ErrInvalidEvent is returned when an event is missing required fields.
	ErrInvalidEvent = errors.New("history: invalid event")
)
