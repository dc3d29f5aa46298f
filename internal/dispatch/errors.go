package dispatch

import "errors"

// Domain errors for the dispatch package.
var (
	// ErrChannelClosed is returned when the worker has stopped or was never started.
	ErrChannelClosed = errors.New("dispatch: channel closed")

	// ErrQueueFull is returned by Enqueue when no queue slot is free.
	ErrQueueFull = errors.New("dispatch: queue full")

	// ErrUnknownCommand is returned for a command kind the worker does not handle.
	ErrUnknownCommand = errors.New("dispatch: unknown command")

	// ErrInternal is returned when a command handler panicked.
	ErrInternal = errors.New("dispatch: internal error")
)
