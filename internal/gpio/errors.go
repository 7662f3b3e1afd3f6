package gpio

import "errors"

var (
	// ErrNotSupported is returned by Open on platforms without the GPIO
	// character device.
	ErrNotSupported = errors.New("gpio: not supported on this platform")

	// ErrDuplicatePin is returned when two roles are assigned the same line.
	ErrDuplicatePin = errors.New("gpio: pin assigned twice")
)
