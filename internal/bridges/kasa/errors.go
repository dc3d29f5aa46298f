package kasa

import "errors"

// Domain errors for the relay transport.
//
// Every failure returned by Client wraps exactly one of these, so callers
// can classify with errors.Is without inspecting network errors.
var (
	// ErrUnreachable is returned when the relay cannot be dialled, or the
	// exchange fails or times out before a complete response is read.
	ErrUnreachable = errors.New("kasa: relay unreachable")

	// ErrMalformed is returned when a response frame or its decrypted
	// payload cannot be parsed, or the relay rejects the command.
	ErrMalformed = errors.New("kasa: malformed response")
)
