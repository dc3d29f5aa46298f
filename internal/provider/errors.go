package provider

import "errors"

// Domain errors for the provider package.
var (
	// ErrInvalidSource is returned when a configuration source cannot be read or decoded.
	ErrInvalidSource = errors.New("provider: invalid source")
)
