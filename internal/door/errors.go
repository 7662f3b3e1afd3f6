package door

import "errors"

// Domain errors for the door package.
//
//	if errors.Is(err, door.ErrUnknownCommand) {
//	    // reject the request
//	}
var (
	// ErrUnknownCommand is returned when a command name is not toggle, open or close.
	ErrUnknownCommand = errors.New("door: unknown command")

	// ErrInvalidConfig is returned when controller timing parameters are unusable.
	ErrInvalidConfig = errors.New("door: invalid config")

	// ErrMissingPin is returned when a limit switch or the coupler is not provided.
	ErrMissingPin = errors.New("door: missing pin")
)
