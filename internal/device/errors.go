package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a named device, preset or tag group does not exist.
	ErrNotFound = errors.New("device: not found")

	// ErrUnknownType is returned when a relay type is not recognised.
	ErrUnknownType = errors.New("device: unknown type")

	// ErrInvalidDevice is returned when a relay definition is incomplete.
	ErrInvalidDevice = errors.New("device: invalid")
)
