// Package dispatch serialises every relay operation through a single worker.
//
// The Worker owns the device.Registry. HTTP handlers, the MQTT bridge and
// the refresh scheduler never touch relays directly; they submit Commands
// and wait for the matching Response:
//
//	caller ──Submit──▶ queue (FIFO) ──▶ Worker ──▶ relays
//	   ▲                                  │
//	   └────────── reply channel ◀────────┘
//
// # Ordering
//
// Commands are processed strictly in submission order and each one is
// fully resolved before the next is dequeued, so at most one relay
// exchange is in flight. Refresh commands queue like any other command.
//
// # Correlation
//
// Every Command carries a request ID and its own reply channel with room
// for one Response. A caller that gives up waiting never blocks the worker,
// and no caller can receive another caller's Response.
//
// # Failure Policy
//
//   - An unknown relay name answers false rather than an error.
//   - An unknown preset or tag answers a not-found error.
//   - AutoRefresh answers nothing on success and an error on failure.
//   - Handler panics are recovered and answered as internal errors.
package dispatch
